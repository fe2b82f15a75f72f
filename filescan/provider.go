package filescan

// Provider holds the global state for a scanner.
//
// All methods on this interface must be thread-safe, StartStream() is called
// concurrently for concurrent uploads.
type Provider interface {
	// Init is called once before the first call to StartStream(). This is the
	// place to connect to a scan engine or load rules.
	Init() error
	// StartStream is called once for each upload with the declared file name
	// and the headers of the request carrying the upload.
	//
	// Returning an error means the upload cannot be scanned, it is resolved by
	// the failure policy. Errors should be runtime.EngineError.
	StartStream(fileName string, headers Headers) (Session, error)
	// Destroy is called once at shutdown, after which no other method is
	// called. This is the place to release engine handles.
	Destroy() error
}

// Session holds the upload-specific state for a scanner.
//
// Methods on this interface need not be thread-safe, they are never called
// concurrently for the same session. A session sees any number of calls to
// Chunk() followed by exactly one call to Complete() or Abort(), and nothing
// after that. If Chunk() returns Reject, the next call is Abort().
//
// Implementors should embed SessionBase, such that methods they don't care
// about accept and do nothing.
type Session interface {
	// Chunk is called for each chunk of bytes received. It must not retain
	// data after returning, and should run in time proportional to len(data).
	Chunk(data []byte) (Decision, error)
	// Complete is called once all bytes have been received and accepted,
	// filePath is where the host stored the received file.
	Complete(filePath string) (Decision, error)
	// Abort is called if the upload is cancelled, or rejected, before
	// completion. It must release any resources held by the session.
	Abort()
}

// ProviderBase is a base implementation of the lifecycle methods of Provider.
// If you embed this you only have to implement StartStream().
type ProviderBase struct{}

// Init does nothing.
func (ProviderBase) Init() error {
	return nil
}

// Destroy does nothing.
func (ProviderBase) Destroy() error {
	return nil
}

// SessionBase is a base implementation of Session that accepts everything.
type SessionBase struct{}

// Chunk accepts the chunk.
func (SessionBase) Chunk([]byte) (Decision, error) {
	return Accept, nil
}

// Complete accepts the file.
func (SessionBase) Complete(string) (Decision, error) {
	return Accept, nil
}

// Abort does nothing.
func (SessionBase) Abort() {}

// rejectingSession stands in for a session that failed to start when the
// failure policy is FailClosed.
type rejectingSession struct{}

func (rejectingSession) Chunk([]byte) (Decision, error) {
	return Reject, nil
}

func (rejectingSession) Complete(string) (Decision, error) {
	return Reject, nil
}

func (rejectingSession) Abort() {}
