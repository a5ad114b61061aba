package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/anchorpatch/internal/plan"
)

// PlanLoadError is a plan file that could not be loaded.
type PlanLoadError struct {
	File string
	Code string
	Err  error
}

func (e *PlanLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.File, e.Code, e.Err)
}

func (e *PlanLoadError) Unwrap() error {
	return e.Err
}

// FindPlanFiles expands the given paths into plan files. Files are taken as
// given; directories are walked for files with a plan extension, in lexical
// order.
func FindPlanFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &PlanLoadError{File: p, Code: ErrCodeNotFound, Err: fmt.Errorf("path not found")}
		}
		if err != nil {
			return nil, &PlanLoadError{File: p, Code: ErrCodeNotFound, Err: err}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			if isPlanFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, &PlanLoadError{File: p, Code: ErrCodeScanError, Err: err}
		}
	}
	return files, nil
}

func isPlanFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range plan.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// loadPlan loads one plan file, classifying failures by error code.
func loadPlan(path string) (*plan.Plan, error) {
	p, err := plan.LoadFile(path)
	if err == nil {
		return p, nil
	}

	code := ErrCodePlanInvalid
	var errs plan.Errors
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = ErrCodeNotFound
	case errors.As(err, &errs) && len(errs) > 0:
		code = MapPlanErrorCode(errs[0])
	}
	return nil, &PlanLoadError{File: path, Code: code, Err: err}
}
