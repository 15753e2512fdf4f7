package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// migrateLogger routes golang-migrate's log output through the service logger.
type migrateLogger struct {
	ectologger.Logger
}

func (l migrateLogger) Verbose() bool {
	return true
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationConfig controls how the warehouse schema is brought up to date
// at startup.
type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the schema to a specific migration; zero migrates to the
	// latest available.
	Version uint
	// Force stamps the schema version without running any migration. Used to
	// recover a warehouse left dirty by a killed run.
	Force int
	// AutoRollback reverts a dirty schema to the previous version before
	// surfacing the migration error.
	AutoRollback bool
}

// MigrationService applies the file-based migrations that define the star
// schema. The service owns schema evolution; nothing else in the pipeline
// issues DDL outside staging tables.
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// Migrate runs the configured migrations against the given database driver.
// A failed migration returns an error so the service refuses to start
// against a half-built schema.
func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) error {
	folder, err := ms.migrationFolder()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = migrateLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force schema to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, err := m.Version()
	if err != nil {
		previous = 0
	}

	started := time.Now()
	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}
	ms.logger.Infof("Schema migrations finished in %v", time.Since(started))

	return ms.resolveOutcome(m, folder, migrationErr, previous)
}

// migrationFolder resolves the configured path, trying it relative to the
// working directory when it does not exist as given.
func (ms *MigrationService) migrationFolder() (string, error) {
	folder := ms.config.MigrationFolderPath
	if _, err := os.Stat(folder); err == nil {
		return folder, nil
	}

	wd, _ := os.Getwd()
	candidate := filepath.Join(wd, folder)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	return "", errors.Errorf("migration folder %s does not exist", folder)
}

func (ms *MigrationService) resolveOutcome(m *migrate.Migrate, folder string, err error, previous uint) error {
	if err == nil {
		ms.logger.Info("Schema migrations applied")
		return nil
	}
	if err == migrate.ErrNoChange {
		ms.logger.Info("Schema already up to date")
		return nil
	}

	// A recorded version newer than any migration file means a rollback was
	// deployed. Stamp the schema at the newest file and carry on.
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := newestFileVersion(folder)
		if latestErr != nil {
			ms.logger.WithError(latestErr).Error("Failed to determine newest migration file")
			return err
		}
		ms.logger.Warnf("Schema version %d has no migration file, forcing to %d", previous, latest)
		if forceErr := m.Force(latest); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force schema to version %d", latest)
			return forceErr
		}
		return nil
	}

	ms.logger.WithError(err).Error("Schema migration failed")

	version, dirty, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to read schema version after failure")
		return err
	}

	if ms.config.AutoRollback && dirty {
		if previous == 0 {
			previous = version - 1
		}
		ms.logger.Warnf("Schema dirty at version %d, reverting to %d", version, previous)
		if forceErr := m.Force(int(previous)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to revert schema to version %d", previous)
			return forceErr
		}
	}

	// The original error still blocks startup even after a clean revert.
	return err
}

// newestFileVersion scans the migration folder for the highest numbered
// up migration.
func newestFileVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	re := regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)
	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := re.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0, err
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files in %s", folder)
	}
	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
