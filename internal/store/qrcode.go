package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/qrvivo/qrvivo/internal/model"
)

type QRCodeStore struct {
	db *sql.DB
}

func NewQRCodeStore(db *sql.DB) *QRCodeStore {
	return &QRCodeStore{db: db}
}

func scanQRCode(scanner interface{ Scan(...any) error }) (*model.QRCode, error) {
	var qr model.QRCode
	err := scanner.Scan(&qr.ID, &qr.AccountID, &qr.Name, &qr.Type, &qr.Payload, &qr.CreatedAt, &qr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &qr, nil
}

const qrCodeCols = `id, account_id, name, type, payload, created_at, updated_at`

// Create inserts a QR code with a fresh random public ID. The ID is what gets
// printed, so it is never reused or changed afterwards.
func (s *QRCodeStore) Create(accountID int64, name, typ, payload string) (*model.QRCode, error) {
	if name == "" {
		name = "Untitled QR"
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO qr_codes (id, account_id, name, type, payload) VALUES (?, ?, ?, ?, ?)`,
		id, accountID, name, typ, payload,
	)
	if err != nil {
		return nil, fmt.Errorf("insert qr code: %w", err)
	}
	return s.GetByID(id)
}

func (s *QRCodeStore) GetByID(id string) (*model.QRCode, error) {
	row := s.db.QueryRow(`SELECT `+qrCodeCols+` FROM qr_codes WHERE id = ?`, id)
	qr, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get qr code: %w", err)
	}
	return qr, nil
}

func (s *QRCodeStore) ListByAccountID(accountID int64) ([]*model.QRCode, error) {
	rows, err := s.db.Query(
		`SELECT `+qrCodeCols+` FROM qr_codes WHERE account_id = ? ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	defer rows.Close()

	var codes []*model.QRCode
	for rows.Next() {
		qr, err := scanQRCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qr code: %w", err)
		}
		codes = append(codes, qr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qr codes: %w", err)
	}
	return codes, nil
}

// Update rewrites the mutable fields of a QR code owned by accountID.
// Returns nil when the code does not exist or belongs to someone else.
func (s *QRCodeStore) Update(id string, accountID int64, name, typ, payload string) (*model.QRCode, error) {
	result, err := s.db.Exec(
		`UPDATE qr_codes SET name = ?, type = ?, payload = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND account_id = ?`,
		name, typ, payload, id, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update qr code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// Delete removes a QR code owned by accountID and reports whether a row was
// actually deleted.
func (s *QRCodeStore) Delete(id string, accountID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM qr_codes WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("delete qr code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
