package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileError is a shape problem in one country declaration, with
// the CUE source position when one is known.
type CompileError struct {
	Country string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	field := e.Field
	if e.Country != "" {
		field = "country." + e.Country
		if e.Field != "" {
			field += "." + e.Field
		}
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// CompileCountry parses one CUE country struct into a Country. The
// country code comes from the struct label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`country: KE: { name: "Kenya" }`)
//	c, err := CompileCountry(v.LookupPath(cue.ParsePath("country.KE")))
func CompileCountry(v cue.Value) (*Country, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Country{Enabled: true}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		c.Code = labels[len(labels)-1].String()
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Country: c.Code,
			Field:   "name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	c.Name = name

	enabledVal := v.LookupPath(cue.ParsePath("enabled"))
	if enabledVal.Exists() {
		enabled, err := enabledVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Enabled = enabled
	}

	if c.Aliases, err = stringList(v, "aliases"); err != nil {
		return nil, err
	}
	if c.Sources, err = stringList(v, "sources"); err != nil {
		return nil, err
	}
	return c, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadDir compiles every .cue file in dir into a Registry and runs
// Validate over the compiled set. Errors are collected, not
// fail-fast, so one broken country does not hide the next. A non-nil
// error slice means the registry must not drive a consolidation; the
// partial registry is still returned for inspection.
func LoadDir(dir string) (*Registry, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("registry directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("accessing registry directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning registry directory: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	countriesVal := value.LookupPath(cue.ParsePath("country"))
	if !countriesVal.Exists() {
		return nil, []error{fmt.Errorf("no country declarations in %s", dir)}
	}
	iter, err := countriesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var errs []error
	countries := []Country{}
	for iter.Next() {
		c, compileErr := CompileCountry(iter.Value())
		if compileErr != nil {
			errs = append(errs, compileErr)
			continue
		}
		countries = append(countries, *c)
	}

	reg := NewRegistry(countries)
	for _, verr := range Validate(reg) {
		errs = append(errs, verr)
	}
	if len(errs) > 0 {
		return reg, errs
	}
	return reg, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
