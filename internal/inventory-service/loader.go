package inventoryservice

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
)

const catalogColumns = 5

// LoadCSV reads catalog rows of id,name,description,price,stock_quantity.
// The first row is a header and is skipped.
func LoadCSV(r io.Reader) ([]domain.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = catalogColumns
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}

	var products []domain.Product
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		line, _ := cr.FieldPos(0)
		p, err := parseProduct(rec)
		if err != nil {
			return nil, fmt.Errorf("catalog: line %d: %w", line, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// LoadFile opens path and parses it with LoadCSV.
func LoadFile(path string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadCSV(f)
}

func parseProduct(rec []string) (domain.Product, error) {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return domain.Product{}, fmt.Errorf("id %q: %w", rec[0], err)
	}
	price, err := strconv.Atoi(rec[3])
	if err != nil {
		return domain.Product{}, fmt.Errorf("price %q: %w", rec[3], err)
	}
	stock, err := strconv.Atoi(rec[4])
	if err != nil {
		return domain.Product{}, fmt.Errorf("stock_quantity %q: %w", rec[4], err)
	}
	if stock < 0 {
		return domain.Product{}, fmt.Errorf("stock_quantity %d is negative", stock)
	}
	return domain.Product{
		ID:            id,
		Name:          rec[1],
		Description:   rec[2],
		Price:         price,
		StockQuantity: stock,
	}, nil
}

// Bootstrap initializes one entity per catalog product. It runs once at
// process start.
func Bootstrap(dir *Directory, products []domain.Product) int {
	n := 0
	for _, p := range products {
		if dir.Tell(Key(p.ID), Initialize{Product: p}) {
			n++
		}
	}
	return n
}
