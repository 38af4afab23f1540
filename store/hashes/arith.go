package hashes

import (
	"strconv"

	"github.com/PikaLabs/blackwidow/internal/status"
)

func parseInt(payload []byte) (int64, *status.Status) {
	if len(payload) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, status.Corruptionf("hashes: field payload is not an integer")
	}
	return v, nil
}

func parseFloat(payload []byte) (float64, *status.Status) {
	if len(payload) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseFloat(string(payload), 64)
	if err != nil {
		return 0, status.Corruptionf("hashes: field payload is not a float")
	}
	return v, nil
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
