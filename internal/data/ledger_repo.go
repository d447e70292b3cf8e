package data

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/data/pgxutil"
	"github.com/target/repodoc/internal/domain/model"
	apperrors "github.com/target/repodoc/internal/errors"
)

// LedgerRepo implements core.VersionLedger on PostgreSQL so several pipeline
// instances sharing an archive root never hand out the same version twice.
//
// Like FileLedger, counters never fall below the highest version among archive files
// already under ArchiveRoot, so switching backends does not reuse numbers.
type LedgerRepo struct {
	DB          *sql.DB
	ArchiveRoot string
	clock       Clock
}

var _ core.VersionLedger = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new LedgerRepo with the given database connection.
// archiveRoot may be empty, in which case no archive files are consulted.
func NewLedgerRepo(db *sql.DB, archiveRoot string) *LedgerRepo {
	return &LedgerRepo{DB: db, ArchiveRoot: archiveRoot, clock: systemClock{}}
}

// onDisk returns the highest archived version per folder for repository.
func (r *LedgerRepo) onDisk(repository string) (model.Ledger, error) {
	if r.ArchiveRoot == "" {
		return model.Ledger{}, nil
	}
	found, err := scanArchiveVersions(filepath.Join(r.ArchiveRoot, repository))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "scan archive directory")
	}
	return found, nil
}

// Versions returns the last reserved version per folder for repository.
func (r *LedgerRepo) Versions(ctx context.Context, repository string) (model.Ledger, error) {
	if err := validateRepositoryName(repository); err != nil {
		return nil, apperrors.ValidationField("repository", err.Error())
	}

	out := model.Ledger{}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT folder, last_version
			FROM archive_versions
			WHERE repository = $1
		`, repository)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				folder  string
				version int
			)
			if scanErr := rows.Scan(&folder, &version); scanErr != nil {
				return scanErr
			}
			out[folder] = version
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	found, err := r.onDisk(repository)
	if err != nil {
		return nil, err
	}
	out.Merge(found)
	return out, nil
}

// Reserve atomically increments the counter for (repository, folder) and returns the new value,
// which is always above any version already archived on disk.
func (r *LedgerRepo) Reserve(ctx context.Context, repository, folder string) (int, error) {
	if err := validateRepositoryName(repository); err != nil {
		return 0, apperrors.ValidationField("repository", err.Error())
	}
	if strings.TrimSpace(folder) == "" {
		return 0, apperrors.ValidationField("folder", "folder is required")
	}

	found, err := r.onDisk(repository)
	if err != nil {
		return 0, err
	}
	floor := found[folder]

	var version int
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO archive_versions (repository, folder, last_version, committed_version, updated_at)
			VALUES ($1, $2, $4::integer + 1, 0, $3)
			ON CONFLICT (repository, folder) DO UPDATE
			SET last_version = GREATEST(archive_versions.last_version, $4::integer) + 1,
			    updated_at = EXCLUDED.updated_at
			RETURNING last_version
		`, repository, folder, r.clock.Now().UTC(), floor).Scan(&version)
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return version, nil
}

// Commit marks version as written. Committing never lowers a recorded version.
func (r *LedgerRepo) Commit(ctx context.Context, params core.CommitVersionParams) error {
	if err := validateRepositoryName(params.Repository); err != nil {
		return apperrors.ValidationField("repository", err.Error())
	}
	if strings.TrimSpace(params.Folder) == "" {
		return apperrors.ValidationField("folder", "folder is required")
	}
	if params.Version <= 0 {
		return apperrors.ValidationField("version", "version must be positive")
	}

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE archive_versions
			SET committed_version = GREATEST(committed_version, $3),
			    last_version = GREATEST(last_version, $3),
			    updated_at = $4
			WHERE repository = $1 AND folder = $2
		`, params.Repository, params.Folder, params.Version, r.clock.Now().UTC())
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("no reservation for %s/%s", params.Repository, params.Folder)
	}
	return nil
}
