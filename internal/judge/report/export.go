package report

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// Report is the machine readable record of a judging session.
type Report struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Environment Environment             `json:"environment"`
	Limits      string                  `json:"limits"`
	Filter      string                  `json:"filter,omitempty"`
	Results     []result.SolutionResult `json:"results"`
}

// WriteFile stores the report as JSON, zstd-compressed when path ends in .zst.
func WriteFile(path string, rep Report) error {
	f, err := os.Create(path)
	if err != nil {
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "create report failed")
	}
	defer f.Close()

	if err := Encode(f, rep, strings.HasSuffix(path, zstdSuffix)); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "close report failed")
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, appErr.Wrapf(err, appErr.NotFound, "open report failed")
	}
	defer f.Close()
	return Decode(f, strings.HasSuffix(path, zstdSuffix))
}

// Encode writes rep as indented JSON, optionally zstd-compressed.
func Encode(w io.Writer, rep Report, compressed bool) (err error) {
	if !compressed {
		return encodeJSON(w, rep)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "create zstd writer failed")
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = appErr.Wrapf(cerr, appErr.JudgeSystemError, "flush zstd writer failed")
		}
	}()
	return encodeJSON(enc, rep)
}

func encodeJSON(w io.Writer, rep Report) error {
	je := json.NewEncoder(w)
	je.SetIndent("", "  ")
	if err := je.Encode(rep); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "encode report failed")
	}
	return nil
}

// Decode reads a report produced by Encode.
func Decode(r io.Reader, compressed bool) (Report, error) {
	if compressed {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return Report{}, appErr.Wrapf(err, appErr.InvalidFormat, "create zstd reader failed")
		}
		defer dec.Close()
		r = dec
	}
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, appErr.Wrapf(err, appErr.InvalidFormat, "decode report failed")
	}
	return rep, nil
}
