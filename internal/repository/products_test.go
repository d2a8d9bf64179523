package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/oodoriko/port-sub000/types"
)

type mockProductsRepository struct {
	sqlError error
	tickers  []string
	products []types.Product
}

func (m mockProductsRepository) GetConstituents(_ context.Context, _ string) ([]string, error) {
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	return m.tickers, nil
}

func (m mockProductsRepository) GetProducts(_ context.Context, _ []string) ([]types.Product, error) {
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	return m.products, nil
}

func TestDatabase_GetConstituents(t *testing.T) {
	tests := []struct {
		name    string
		tickers []string
		sqlErr  error
		wantErr error
	}{
		{"should throw ErrBenchmarkNotFound on empty result", nil, nil, ErrBenchmarkNotFound},
		{"should propagate query error", nil, errors.New("broken pipe"), nil},
		{"should return constituents", []string{"AAPL", "MSFT"}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{
				products: mockProductsRepository{sqlError: tt.sqlErr, tickers: tt.tickers},
			}
			got, err := db.GetConstituents(context.Background(), "SPX")
			if tt.sqlErr != nil {
				if !errors.Is(err, tt.sqlErr) {
					t.Errorf("GetConstituents() error = %v, want %v", err, tt.sqlErr)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetConstituents() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetConstituents() unexpected error = %v", err)
			}
			if len(got) != len(tt.tickers) {
				t.Errorf("GetConstituents() = %v, want %v", got, tt.tickers)
			}
		})
	}
}

func TestDatabase_GetProducts(t *testing.T) {
	products := []types.Product{
		{Ticker: "AAPL", Name: "Apple", Sector: "Technology", Country: "US"},
	}
	db := &Database{products: mockProductsRepository{products: products}}

	got, err := db.GetProducts(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("GetProducts() unexpected error = %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Errorf("GetProducts() = %v, want %v", got, products)
	}
}
