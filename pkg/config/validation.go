package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	for i, u := range cfg.Storage.Units {
		if err := validateUnit(u); err != nil {
			return fmt.Errorf("storage.units[%d]: %w", i, err)
		}
	}
	return nil
}

func validateUnit(u UnitConfig) error {
	if u.SectorSize&(u.SectorSize-1) != 0 {
		return fmt.Errorf("sector_size %d is not a power of two", u.SectorSize)
	}

	switch u.Type {
	case BackendMemory:
		if u.sectorCount() == 0 {
			return errors.New("memory unit needs sector_count or memory.size")
		}
	case BackendFile:
		if u.File.Create && u.SectorCount == 0 {
			return errors.New("file.create needs sector_count")
		}
	case BackendS3, BackendBadger:
		if u.SectorCount == 0 {
			return fmt.Errorf("%s unit needs sector_count", u.Type)
		}
	}
	return nil
}

// formatValidationErrors joins field errors as "field: failed 'tag' check".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("%s: failed '%s=%s' check (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			errs = append(errs, fmt.Errorf("%s: failed '%s' check", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.Join(errs...)
}
