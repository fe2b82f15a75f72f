package config

// ReplaceObjects will traverse through the config object and replace every
// object that has a string property '$' + key with the value returned from
// replacement(obj).
//
// This is useful when implementing TransformationProviders.
func ReplaceObjects(
	config map[string]interface{},
	key string,
	replacement func(obj map[string]interface{}) (interface{}, error),
) error {
	_, err := replace(config, "$"+key, replacement)
	return err
}

func replace(
	val interface{},
	marker string,
	replacement func(obj map[string]interface{}) (interface{}, error),
) (interface{}, error) {
	switch val := val.(type) {
	case []interface{}:
		for i, v := range val {
			r, err := replace(v, marker, replacement)
			if err != nil {
				return nil, err
			}
			val[i] = r
		}
	case map[string]interface{}:
		if _, ok := val[marker].(string); ok {
			return replacement(val)
		}
		for k, v := range val {
			r, err := replace(v, marker, replacement)
			if err != nil {
				return nil, err
			}
			val[k] = r
		}
	}
	return val, nil
}
