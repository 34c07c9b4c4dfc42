package auth

import "encoding/json"

// roundTrip decodes body into out the way the real client decodes a response.
func roundTrip(body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
