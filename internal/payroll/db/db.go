// Package db implements the payroll account store on GORM. Records are kept
// in one table keyed by their deterministic address and encoded in the fixed
// layout of package codec.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gartstein/payroll/internal/payroll/codec"
	dbmodels "github.com/gartstein/payroll/internal/payroll/db/models"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLSTATE codes postgres raises when a serializable transaction loses to a
// concurrent writer.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type Repository struct {
	db     *gorm.DB
	txOpts *sql.TxOptions
}

type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite database file, or ":memory:".
	Path string
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	var txOpts *sql.TxOptions
	switch cfg.Driver {
	case DriverPostgres, "":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dialector = postgres.Open(dsn)
		// Concurrent operations on the same records must serialize or fail.
		txOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	case DriverSQLite:
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// One connection keeps ":memory:" databases shared and writes serialized.
		sqlDB.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, txOpts: txOpts}
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Migrate creates or updates the account table.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&dbmodels.Account{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	data, err := codec.EncodeCompany(company)
	if err != nil {
		return fmt.Errorf("encode company: %w", err)
	}
	return r.createAccount(ctx, &dbmodels.Account{
		Address: company.Address.String(),
		Kind:    string(codec.KindCompany),
		Owner:   company.Authority.String(),
		Data:    data,
	})
}

func (r *Repository) GetCompany(ctx context.Context, addr models.Pubkey) (*models.Company, error) {
	row, err := r.getAccount(ctx, addr, codec.KindCompany)
	if err != nil {
		return nil, err
	}
	company, err := codec.DecodeCompany(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode company %s: %w", addr, err)
	}
	company.Address = addr
	return company, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, company *models.Company) error {
	data, err := codec.EncodeCompany(company)
	if err != nil {
		return fmt.Errorf("encode company: %w", err)
	}
	return r.updateAccount(ctx, company.Address, codec.KindCompany, data)
}

func (r *Repository) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	data, err := codec.EncodeEmployee(employee)
	if err != nil {
		return fmt.Errorf("encode employee: %w", err)
	}
	return r.createAccount(ctx, &dbmodels.Account{
		Address: employee.Address.String(),
		Kind:    string(codec.KindEmployee),
		Owner:   employee.Wallet.String(),
		Parent:  employee.Company.String(),
		Data:    data,
	})
}

func (r *Repository) GetEmployee(ctx context.Context, addr models.Pubkey) (*models.Employee, error) {
	row, err := r.getAccount(ctx, addr, codec.KindEmployee)
	if err != nil {
		return nil, err
	}
	return decodeEmployee(row)
}

func (r *Repository) UpdateEmployee(ctx context.Context, employee *models.Employee) error {
	data, err := codec.EncodeEmployee(employee)
	if err != nil {
		return fmt.Errorf("encode employee: %w", err)
	}
	return r.updateAccount(ctx, employee.Address, codec.KindEmployee, data)
}

// ListEmployees returns every employee record of company, inactive ones included.
func (r *Repository) ListEmployees(ctx context.Context, company models.Pubkey) ([]*models.Employee, error) {
	var rows []dbmodels.Account
	result := r.db.WithContext(ctx).
		Where("kind = ? AND parent = ?", string(codec.KindEmployee), company.String()).
		Order("created_at, address").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	employees := make([]*models.Employee, 0, len(rows))
	for i := range rows {
		employee, err := decodeEmployee(&rows[i])
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, nil
}

func (r *Repository) CreatePaymentProof(ctx context.Context, proof *models.PaymentProof) error {
	data, err := codec.EncodePaymentProof(proof)
	if err != nil {
		return fmt.Errorf("encode payment proof: %w", err)
	}
	return r.createAccount(ctx, &dbmodels.Account{
		Address: proof.Address.String(),
		Kind:    string(codec.KindPaymentProof),
		Owner:   proof.Employee.String(),
		Parent:  proof.Company.String(),
		Data:    data,
	})
}

func (r *Repository) GetPaymentProof(ctx context.Context, addr models.Pubkey) (*models.PaymentProof, error) {
	row, err := r.getAccount(ctx, addr, codec.KindPaymentProof)
	if err != nil {
		return nil, err
	}
	return decodePaymentProof(row)
}

// ListPaymentProofs returns the proofs recorded for wallet in company.
func (r *Repository) ListPaymentProofs(ctx context.Context, company, wallet models.Pubkey) ([]*models.PaymentProof, error) {
	var rows []dbmodels.Account
	result := r.db.WithContext(ctx).
		Where("kind = ? AND parent = ? AND owner = ?", string(codec.KindPaymentProof), company.String(), wallet.String()).
		Order("created_at, address").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	proofs := make([]*models.PaymentProof, 0, len(rows))
	for i := range rows {
		proof, err := decodePaymentProof(&rows[i])
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

func (r *Repository) CreateTokenAccount(ctx context.Context, account *models.TokenAccount) error {
	data, err := codec.EncodeTokenAccount(account)
	if err != nil {
		return fmt.Errorf("encode token account: %w", err)
	}
	return r.createAccount(ctx, &dbmodels.Account{
		Address: account.Address.String(),
		Kind:    string(codec.KindTokenAccount),
		Owner:   account.Owner.String(),
		Parent:  account.Mint.String(),
		Data:    data,
	})
}

func (r *Repository) GetTokenAccount(ctx context.Context, addr models.Pubkey) (*models.TokenAccount, error) {
	row, err := r.getAccount(ctx, addr, codec.KindTokenAccount)
	if err != nil {
		return nil, err
	}
	account, err := codec.DecodeTokenAccount(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", addr, err)
	}
	account.Address = addr
	return account, nil
}

func (r *Repository) UpdateTokenAccount(ctx context.Context, account *models.TokenAccount) error {
	data, err := codec.EncodeTokenAccount(account)
	if err != nil {
		return fmt.Errorf("encode token account: %w", err)
	}
	return r.updateAccount(ctx, account.Address, codec.KindTokenAccount, data)
}

// AccountExists reports whether any record lives at addr.
func (r *Repository) AccountExists(ctx context.Context, addr models.Pubkey) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&dbmodels.Account{}).
		Where("address = ?", addr.String()).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// WithTransaction runs fn against a repository bound to one database
// transaction. Every write made through that repository commits together,
// or none does when fn returns an error.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	var opts []*sql.TxOptions
	if r.txOpts != nil {
		opts = append(opts, r.txOpts)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, txOpts: r.txOpts})
	}, opts...)
	return translateError(err)
}

// translateError maps serialization failures to ErrConcurrentUpdate and
// leaves every other error as is.
func translateError(err error) error {
	if err == nil || errors.Is(err, e.ErrConcurrentUpdate) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %v", e.ErrConcurrentUpdate, err)
		}
	}
	return err
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (r *Repository) createAccount(ctx context.Context, row *dbmodels.Account) error {
	addr, err := models.ParsePubkey(row.Address)
	if err != nil {
		return err
	}
	exists, err := r.AccountExists(ctx, addr)
	if err != nil {
		return err
	}
	if exists {
		return e.ErrAlreadyExists
	}
	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrAlreadyExists
		}
		return translateError(result.Error)
	}
	return nil
}

func (r *Repository) getAccount(ctx context.Context, addr models.Pubkey, kind codec.Kind) (*dbmodels.Account, error) {
	var row dbmodels.Account
	result := r.db.WithContext(ctx).First(&row, "address = ? AND kind = ?", addr.String(), string(kind))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, translateError(result.Error)
	}
	return &row, nil
}

func (r *Repository) updateAccount(ctx context.Context, addr models.Pubkey, kind codec.Kind, data []byte) error {
	result := r.db.WithContext(ctx).Model(&dbmodels.Account{}).
		Where("address = ? AND kind = ?", addr.String(), string(kind)).
		Update("data", data)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func decodeEmployee(row *dbmodels.Account) (*models.Employee, error) {
	employee, err := codec.DecodeEmployee(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode employee %s: %w", row.Address, err)
	}
	addr, err := models.ParsePubkey(row.Address)
	if err != nil {
		return nil, err
	}
	employee.Address = addr
	return employee, nil
}

func decodePaymentProof(row *dbmodels.Account) (*models.PaymentProof, error) {
	proof, err := codec.DecodePaymentProof(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payment proof %s: %w", row.Address, err)
	}
	addr, err := models.ParsePubkey(row.Address)
	if err != nil {
		return nil, err
	}
	proof.Address = addr
	return proof, nil
}
