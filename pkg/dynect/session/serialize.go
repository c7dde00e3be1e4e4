package session

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

// RequestFielder is implemented by resource types that can serialize
// themselves into API request arguments. Resource wrappers implement this
// instead of the engine harvesting struct fields by reflection.
type RequestFielder interface {
	RequestFields() map[string]any
}

// prepareArguments turns the caller's args into the flat key/value map sent
// to the API plus its JSON encoding. nil becomes an empty object; values
// that themselves implement RequestFielder are replaced by their fields.
func prepareArguments(args any) (map[string]any, []byte, error) {
	var fields map[string]any
	switch v := args.(type) {
	case nil:
		fields = map[string]any{}
	case map[string]any:
		fields = v
	case map[string]string:
		fields = make(map[string]any, len(v))
		for key, val := range v {
			fields[key] = val
		}
	case RequestFielder:
		fields = v.RequestFields()
	default:
		return nil, nil, dynerrors.ErrArgument.Msg(
			"arguments must be nil, a map, or implement RequestFields")
	}

	flat := make(map[string]any, len(fields))
	for key, val := range fields {
		if val == nil {
			continue
		}
		if rf, ok := val.(RequestFielder); ok {
			flat[key] = rf.RequestFields()
			continue
		}
		flat[key] = val
	}

	body, err := json.Marshal(flat)
	if err != nil {
		return nil, nil, dynerrors.ErrArgument.Msg("arguments are not serializable").Err(err)
	}
	return flat, body, nil
}

// redactBody masks the password field in an encoded request body so debug
// logs never show credentials.
func redactBody(body []byte) []byte {
	if !gjson.GetBytes(body, "password").Exists() {
		return body
	}
	redacted, err := sjson.SetBytes(body, "password", "*****")
	if err != nil {
		return []byte(`"<unloggable>"`)
	}
	return redacted
}

// redactArgs is the map form of redactBody, used for history records.
func redactArgs(args map[string]any) map[string]any {
	if _, ok := args["password"]; !ok {
		return args
	}
	clean := make(map[string]any, len(args))
	for key, val := range args {
		clean[key] = val
	}
	clean["password"] = "*****"
	return clean
}
