package conf

import "encoding/json"

func unmarshalString(data []byte, out *string) error {
	return json.Unmarshal(data, out)
}

func unmarshalStrict(data []byte, out any) error {
	return json.Unmarshal(data, out)
}
