package store

import (
	"database/sql"
	"fmt"

	"github.com/jfelder/stockroom/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	err := scanner.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Cost, &p.BannerImage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const productCols = `id, user_id, name, description, cost, banner_image, created_at, updated_at`

func (s *ProductStore) Create(userID int64, name, description string, cost *float64, bannerImage string) (*model.Product, error) {
	result, err := s.db.Exec(
		`INSERT INTO products (user_id, name, description, cost, banner_image) VALUES (?, ?, ?, ?, ?)`,
		userID, name, description, cost, bannerImage,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductStore) ListByUser(userID int64) ([]model.Product, error) {
	rows, err := s.db.Query(`SELECT `+productCols+` FROM products WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (s *ProductStore) Update(id int64, name, description string, cost *float64, bannerImage string) (*model.Product, error) {
	_, err := s.db.Exec(
		`UPDATE products SET name = ?, description = ?, cost = ?, banner_image = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, cost, bannerImage, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
