package suitedef

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
	"go.uber.org/multierr"
)

var ErrInvalidSuite = errors.New("invalid suite")

// Load reads a suite file. Comments and trailing commas are allowed.
func Load(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Suite{}, fmt.Errorf("%s: %w", path, err)
	}
	if s.Webroot != "" && !filepath.IsAbs(s.Webroot) {
		s.Webroot = filepath.Join(filepath.Dir(path), s.Webroot)
	}
	return s, nil
}

// Parse decodes and validates suite data.
func Parse(data []byte) (Suite, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Suite{}, fmt.Errorf("%w: %w", ErrInvalidSuite, err)
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	var s Suite
	if err := dec.Decode(&s); err != nil {
		return Suite{}, fmt.Errorf("%w: %w", ErrInvalidSuite, err)
	}
	if err := s.Validate(); err != nil {
		return Suite{}, err
	}
	return s, nil
}

// Validate reports every problem found in the suite.
func (s Suite) Validate() error {
	var errs error
	if len(s.Scenarios) == 0 {
		errs = multierr.Append(errs, errors.New("no scenarios"))
	}
	seen := make(map[string]bool)
	for i, sc := range s.Scenarios {
		where := fmt.Sprintf("scenario %d", i)
		if sc.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = fmt.Sprintf("scenario %q", sc.Name)
			if seen[sc.Name] {
				errs = multierr.Append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[sc.Name] = true
		}
		errs = multierr.Append(errs, sc.validate(where))
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSuite, errs)
	}
	return nil
}

func (sc Scenario) validate(where string) error {
	var errs error
	if len(sc.Steps) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: no steps", where))
	}
	for _, r := range sc.Routes {
		if r.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: route without path", where))
		}
	}
	for i, step := range sc.Steps {
		stepWhere := fmt.Sprintf("%s: step %d (%s)", where, i, step.Action)
		switch step.Action {
		case ActionRegister:
			if step.ScriptURL(sc) == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: no script to register", stepWhere))
			}
		case ActionFetch:
			if step.Request == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: request is required", stepWhere))
			}
		case ActionTrigger:
			if step.Event == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: event is required", stepWhere))
			}
		case ActionInstall, ActionActivate, ActionReady, ActionMessage, ActionPost, ActionPush, ActionUnregister:
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown action, expected one of %v", stepWhere, allActions))
		}
	}
	return errs
}
