// Package refdata loads the customer table and the offer, product and
// knowledge catalogs.
package refdata

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/retention-intel/server/internal/agent/model"
)

const (
	CustomersFile = "customers.csv"
	OffersFile    = "offers.json"
	ProductsFile  = "product_catalog.json"
	KnowledgeFile = "knowledge.json"
)

//go:embed data
var embedded embed.FS

// Dataset is the immutable reference data shared by all turns.
type Dataset struct {
	Customers []model.Customer
	Offers    []model.Offer
	Products  model.ProductCatalog
	Knowledge []model.KnowledgeDoc
}

// Load reads the dataset from dir, or the embedded defaults when dir is empty.
func Load(dir string) (*Dataset, error) {
	if dir == "" {
		return Default()
	}
	return LoadFS(os.DirFS(dir))
}

// Default returns the dataset compiled into the binary.
func Default() (*Dataset, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS reads all four files from fsys.
func LoadFS(fsys fs.FS) (*Dataset, error) {
	var d Dataset

	f, err := fsys.Open(CustomersFile)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", CustomersFile, err)
	}
	d.Customers, err = ParseCustomersCSV(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", CustomersFile, err)
	}

	if err := readJSON(fsys, OffersFile, &d.Offers); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, ProductsFile, &d.Products); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, KnowledgeFile, &d.Knowledge); err != nil {
		return nil, err
	}
	if d.Products == nil {
		d.Products = model.ProductCatalog{}
	}
	return &d, nil
}

func readJSON(fsys fs.FS, name string, dst any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// ParseCustomersCSV reads the customer table. Columns are matched by header
// name; missing or non-numeric numeric cells become zero.
func ParseCustomersCSV(r io.Reader) ([]model.Customer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Customer{}, nil
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := col["customer_id"]; !ok {
		return nil, errors.New("missing customer_id column")
	}

	customers := []model.Customer{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		customers = append(customers, model.Customer{
			ID:             get("customer_id"),
			Name:           get("name"),
			Email:          get("email"),
			Segment:        get("segment"),
			Product:        get("product"),
			ChurnRiskScore: toFloat(get("churn_risk_score")),
			Reason:         get("reason"),
			AvgBalance:     toFloat(get("avg_balance")),
			TenureMonths:   int(toFloat(get("tenure_months"))),
			Complaints90d:  int(toFloat(get("complaints_90d"))),
		})
	}
	return customers, nil
}

func toFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
