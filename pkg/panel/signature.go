package panel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Signature identifies a request by its inputs: identical dimensions and
// cuts in the same order always give the same signature.
func Signature(d Dimensions, cuts []Cut) (string, error) {
	d.Outline = d.Shape()
	if cuts == nil {
		cuts = []Cut{}
	}
	data, err := json.Marshal(struct {
		Dimensions Dimensions `json:"dimensions"`
		Cuts       []Cut      `json:"cuts"`
	}{d, cuts})
	if err != nil {
		return "", fmt.Errorf("panel: signature: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
