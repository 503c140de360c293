package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"RateSentinel/internal/model"
)

// LoadState reads the reference state from a JSON file. Returns the initial
// state if the path is empty or the file doesn't exist.
func LoadState(filePath string) (model.ReferenceState, error) {
	initial := model.ReferenceState{Value: model.DefaultReferenceRate}
	if filePath == "" {
		return initial, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return initial, nil
		}
		return initial, err
	}
	var st model.ReferenceState
	if err := json.Unmarshal(data, &st); err != nil {
		return initial, err
	}
	if st.Value <= 0 {
		return initial, nil
	}
	return st, nil
}

// SaveState writes the reference state to a JSON file through a temp file.
func SaveState(filePath string, st model.ReferenceState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".reference-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
