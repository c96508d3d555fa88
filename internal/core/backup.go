package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"gymledger/internal/blob"
	"gymledger/internal/infra/persistence/textfile"
	"gymledger/pkg/domain"
)

// BackupPrefix namespaces member snapshots inside the backup store.
const BackupPrefix = "members/"

// ErrBackupsDisabled is returned when no backup store is configured.
var ErrBackupsDisabled = errors.New("backups are not configured")

// Backup writes the current record set, in the text persistence format, to
// the backup store under a fresh key.
func (s *Service) Backup(ctx context.Context) (blob.Info, error) {
	var out blob.Info
	err := s.run(ctx, "backup", func(ctx context.Context) error {
		if s.backups == nil {
			return ErrBackupsDisabled
		}
		today := s.today()
		s.syncLocked(today)
		members := s.store.List()
		key := fmt.Sprintf("%s%s/%s.txt", BackupPrefix, today.String(), uuid.NewString())
		info, err := s.backups.Put(ctx, key, bytes.NewReader(textfile.Encode(members)), blob.PutOptions{
			ContentType: "text/plain; charset=utf-8",
			Metadata: map[string]string{
				"records": strconv.Itoa(len(members)),
				"as-of":   today.String(),
			},
		})
		if err != nil {
			return &domain.PersistenceError{Op: "backup " + string(s.backups.Driver()), Err: err}
		}
		out = info
		s.logger.Info("backup written", "key", info.Key, "records", len(members), "driver", string(s.backups.Driver()))
		return nil
	})
	return out, err
}

// ListBackups returns stored snapshots ordered by key, oldest day first.
func (s *Service) ListBackups(ctx context.Context) ([]blob.Info, error) {
	var out []blob.Info
	err := s.run(ctx, "list_backups", func(ctx context.Context) error {
		if s.backups == nil {
			return ErrBackupsDisabled
		}
		infos, err := s.backups.List(ctx, BackupPrefix)
		if err != nil {
			return &domain.PersistenceError{Op: "list backups", Err: err}
		}
		out = infos
		return nil
	})
	return out, err
}

// ReadBackup decodes a stored snapshot without touching the live store.
func (s *Service) ReadBackup(ctx context.Context, key string) (domain.LoadResult, error) {
	var out domain.LoadResult
	err := s.run(ctx, "read_backup", func(ctx context.Context) error {
		if s.backups == nil {
			return ErrBackupsDisabled
		}
		_, rc, err := s.backups.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read backup %s: %w", key, err)
		}
		defer func() { _ = rc.Close() }()
		res, err := textfile.Decode(ctx, rc)
		if err != nil {
			return &domain.PersistenceError{Op: "decode backup " + key, Err: err}
		}
		out = res
		return nil
	})
	return out, err
}
