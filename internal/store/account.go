package store

import (
	"database/sql"
	"fmt"

	"github.com/qrvivo/qrvivo/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var phone, cpf sql.NullString
	var terms int
	err := scanner.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &phone, &cpf,
		&a.Role, &terms, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		a.Phone = &phone.String
	}
	if cpf.Valid {
		a.CPF = &cpf.String
	}
	a.TermsAccepted = terms != 0
	return &a, nil
}

const accountCols = `id, email, password_hash, name, phone, cpf, role, terms_accepted, created_at, updated_at`

func (s *AccountStore) Create(email, passwordHash, name string, phone, cpf *string) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (email, password_hash, name, phone, cpf, terms_accepted) VALUES (?, ?, ?, ?, ?, 1)`,
		email, passwordHash, name, phone, cpf,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// List returns all accounts, newest first. Used by the admin listing.
func (s *AccountStore) List() ([]*model.Account, error) {
	rows, err := s.db.Query(`SELECT ` + accountCols + ` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountStore) SetRole(id int64, role string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}
