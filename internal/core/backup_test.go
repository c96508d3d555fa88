package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"gymledger/internal/blob"
	"gymledger/pkg/domain"
)

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake, err := blob.NewFakeS3(ctx)
	if err != nil {
		t.Fatalf("fake s3: %v", err)
	}
	for name, store := range map[string]blob.Store{"memory": blob.NewMemory(), "s3": fake} {
		t.Run(name, func(t *testing.T) {
			svc, _ := openAt(t, "2024-01-10",
				member(1001, "2024-01-01", domain.PlanMonthly, true, 0),
				member(1002, "2023-06-01", domain.PlanYearly, false, 365),
			)
			WithBackupStore(store)(svc)
			info, err := svc.Backup(ctx)
			if err != nil {
				t.Fatalf("backup: %v", err)
			}
			if !strings.HasPrefix(info.Key, BackupPrefix+"2024-01-10/") || info.Metadata["records"] != "2" {
				t.Fatalf("unexpected backup info %+v", info)
			}
			if _, err := svc.Backup(ctx); err != nil {
				t.Fatalf("second backup: %v", err)
			}
			list, err := svc.ListBackups(ctx)
			if err != nil || len(list) != 2 || list[0].Key == list[1].Key {
				t.Fatalf("list backups: %v %+v", err, list)
			}
			res, err := svc.ReadBackup(ctx, info.Key)
			if err != nil {
				t.Fatalf("read backup: %v", err)
			}
			live, _ := svc.List(ctx)
			if !reflect.DeepEqual(res.Members, live) || res.Skipped != 0 {
				t.Fatalf("backup does not reload to the live records:\n got %+v\nwant %+v", res.Members, live)
			}
			if _, err := svc.ReadBackup(ctx, BackupPrefix+"missing.txt"); !errors.Is(err, blob.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackupDisabled(t *testing.T) {
	ctx := context.Background()
	svc, _ := openAt(t, "2024-01-10")
	if _, err := svc.Backup(ctx); !errors.Is(err, ErrBackupsDisabled) {
		t.Fatalf("expected ErrBackupsDisabled, got %v", err)
	}
	if _, err := svc.ListBackups(ctx); !errors.Is(err, ErrBackupsDisabled) {
		t.Fatalf("expected ErrBackupsDisabled, got %v", err)
	}
	if _, err := svc.ReadBackup(ctx, "k"); !errors.Is(err, ErrBackupsDisabled) {
		t.Fatalf("expected ErrBackupsDisabled, got %v", err)
	}
}
