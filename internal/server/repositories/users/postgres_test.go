package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "role", "storage_quota_bytes", "storage_used_bytes", "created_at"}

const insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash,\s*role,\s*storage_quota_bytes\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id,\s*created_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	quota := int64(1024)
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "alice@example.com", []byte("hash"), "user", sql.NullInt64{Int64: 1024, Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("42", now))

	u := &models.User{UserName: "alice", Email: "alice@example.com", PasswordHash: []byte("hash"), Role: models.RoleUser, StorageQuotaBytes: &quota}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "42" || got.UserName != "alice" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UnlimitedQuotaIsNull(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("root", "root@example.com", []byte("hash"), "admin", sql.NullInt64{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("1", time.Now()))

	_, err := repo.Create(context.Background(), &models.User{UserName: "root", Email: "root@example.com", PasswordHash: []byte("hash"), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_DuplicateIsConstraintViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", Role: models.RoleUser})
	if !errors.Is(err, common.ErrConstraintViolation) {
		t.Fatalf("want ErrConstraintViolation, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByUserName_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`

	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "alice", "a@x", []byte("hash"), "admin", nil, int64(5), time.Now())
	mock.ExpectQuery(q).WithArgs("alice").WillReturnRows(rows)

	got, err := repo.GetByUserName(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUserName error: %v", err)
	}
	if got.ID != "u-1" || got.Role != models.RoleAdmin || got.StorageQuotaBytes != nil || got.StorageUsedBytes != 5 {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByUserName_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+username`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUserName(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID_QuotaScanned(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "alice", "a@x", []byte("hash"), "user", int64(100), int64(0), time.Now())
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.StorageQuotaBytes == nil || *got.StorageQuotaBytes != 100 {
		t.Fatalf("unexpected quota: %+v", got.StorageQuotaBytes)
	}
}

func TestAdjustStorageUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+storage_used_bytes\s*=\s*GREATEST\(storage_used_bytes\s*\+\s*\$2,\s*0\)\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).WithArgs("u-1", int64(-10)).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.AdjustStorageUsed(context.Background(), "u-1", -10); err != nil {
		t.Fatalf("AdjustStorageUsed error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("ghost", int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.AdjustStorageUsed(context.Background(), "ghost", 1); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestLockOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT\s+pg_advisory_xact_lock\(hashtextextended\(\$1::text,\s*0\)\)`

	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.LockOwner(context.Background(), "u-1"); err != nil {
		t.Fatalf("LockOwner error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("u-2").WillReturnError(errors.New("lock timeout"))
	if err := repo.LockOwner(context.Background(), "u-2"); err == nil {
		t.Fatal("expected error")
	}
}
