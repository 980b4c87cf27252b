// Package catalog serves the product catalog from a YAML document, either the
// embedded default or a file supplied through configuration.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/storefront/customizer/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DefaultCustomizableTitle marks a product as customizable when it carries no explicit flag.
const DefaultCustomizableTitle = "Customizable Hat"

// ErrProductNotFound is returned when no product has the requested handle.
var ErrProductNotFound = errors.New("catalog: product not found")

// Catalog is an immutable, in-memory product index keyed by handle.
type Catalog struct {
	products          map[string]domain.Product
	handles           []string
	customizableTitle string
}

// Option customises catalog loading.
type Option func(*Catalog)

// WithCustomizableTitle overrides the title that marks a product as customizable.
func WithCustomizableTitle(title string) Option {
	return func(c *Catalog) {
		if t := strings.TrimSpace(title); t != "" {
			c.customizableTitle = t
		}
	}
}

type catalogDocument struct {
	Products []productDocument `yaml:"products"`
}

type productDocument struct {
	ID           string            `yaml:"id"`
	Handle       string            `yaml:"handle"`
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Currency     string            `yaml:"currency"`
	Price        int64             `yaml:"price"`
	Available    *bool             `yaml:"available"`
	Customizable bool              `yaml:"customizable"`
	Options      []optionDocument  `yaml:"options"`
	Variants     []variantDocument `yaml:"variants"`
}

type optionDocument struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

type variantDocument struct {
	ID        string            `yaml:"id"`
	SKU       string            `yaml:"sku"`
	Title     string            `yaml:"title"`
	Price     *int64            `yaml:"price"`
	Available *bool             `yaml:"available"`
	Options   map[string]string `yaml:"options"`
}

// Default loads the embedded catalog.
func Default(opts ...Option) (*Catalog, error) {
	return Parse(defaultCatalog, opts...)
}

// LoadFile loads the catalog at path, falling back to the embedded catalog when path is empty.
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(opts...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data, opts...)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	var doc catalogDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	c := &Catalog{
		products:          make(map[string]domain.Product, len(doc.Products)),
		customizableTitle: DefaultCustomizableTitle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	for i, pd := range doc.Products {
		product, err := buildProduct(pd)
		if err != nil {
			return nil, fmt.Errorf("catalog: product %d: %w", i, err)
		}
		if _, exists := c.products[product.Handle]; exists {
			return nil, fmt.Errorf("catalog: duplicate handle %q", product.Handle)
		}
		product.Customizable = product.Customizable || product.Title == c.customizableTitle
		c.products[product.Handle] = product
		c.handles = append(c.handles, product.Handle)
	}
	sort.Strings(c.handles)
	return c, nil
}

func buildProduct(pd productDocument) (domain.Product, error) {
	handle := strings.ToLower(strings.TrimSpace(pd.Handle))
	if handle == "" {
		return domain.Product{}, errors.New("handle is required")
	}
	if strings.TrimSpace(pd.Title) == "" {
		return domain.Product{}, fmt.Errorf("%s: title is required", handle)
	}
	if len(pd.Variants) == 0 {
		return domain.Product{}, fmt.Errorf("%s: at least one variant is required", handle)
	}

	html, err := RenderDescription(pd.Description)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", handle, err)
	}

	product := domain.Product{
		ID:               strings.TrimSpace(pd.ID),
		Handle:           handle,
		Title:            strings.TrimSpace(pd.Title),
		Description:      strings.TrimSpace(pd.Description),
		DescriptionHTML:  html,
		Price:            pd.Price,
		Currency:         strings.ToUpper(strings.TrimSpace(pd.Currency)),
		AvailableForSale: boolOr(pd.Available, true),
		Customizable:     pd.Customizable,
	}
	if product.ID == "" {
		product.ID = handle
	}

	known := make(map[string]map[string]struct{}, len(pd.Options))
	for _, od := range pd.Options {
		name := strings.TrimSpace(od.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%s: option name is required", handle)
		}
		values := make(map[string]struct{}, len(od.Values))
		for _, v := range od.Values {
			values[v] = struct{}{}
		}
		known[name] = values
		product.Options = append(product.Options, domain.ProductOption{Name: name, Values: append([]string(nil), od.Values...)})
	}

	for _, vd := range pd.Variants {
		variant, err := buildVariant(product, vd, known)
		if err != nil {
			return domain.Product{}, fmt.Errorf("%s: %w", handle, err)
		}
		product.Variants = append(product.Variants, variant)
	}
	return product, nil
}

func buildVariant(product domain.Product, vd variantDocument, known map[string]map[string]struct{}) (domain.ProductVariant, error) {
	id := strings.TrimSpace(vd.ID)
	if id == "" {
		return domain.ProductVariant{}, errors.New("variant id is required")
	}
	variant := domain.ProductVariant{
		ID:               id,
		SKU:              strings.TrimSpace(vd.SKU),
		Title:            strings.TrimSpace(vd.Title),
		Price:            product.Price,
		AvailableForSale: boolOr(vd.Available, true),
	}
	if vd.Price != nil {
		variant.Price = *vd.Price
	}

	names := make([]string, 0, len(vd.Options))
	for name := range vd.Options {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return optionIndex(product, names[i]) < optionIndex(product, names[j]) })

	titleParts := make([]string, 0, len(names))
	for _, name := range names {
		value := vd.Options[name]
		values, ok := known[name]
		if !ok {
			return domain.ProductVariant{}, fmt.Errorf("variant %s: unknown option %q", id, name)
		}
		if _, ok := values[value]; !ok {
			return domain.ProductVariant{}, fmt.Errorf("variant %s: option %s has no value %q", id, name, value)
		}
		variant.SelectedOptions = append(variant.SelectedOptions, domain.SelectedOption{Name: name, Value: value})
		titleParts = append(titleParts, value)
	}
	if variant.Title == "" {
		variant.Title = strings.Join(titleParts, " / ")
	}
	if variant.Title == "" {
		variant.Title = "Default"
	}
	return variant, nil
}

func optionIndex(product domain.Product, name string) int {
	for i, opt := range product.Options {
		if opt.Name == name {
			return i
		}
	}
	return len(product.Options)
}

// ProductByHandle returns the product with handle.
func (c *Catalog) ProductByHandle(_ context.Context, handle string) (domain.Product, error) {
	product, ok := c.products[strings.ToLower(strings.TrimSpace(handle))]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, handle)
	}
	return product, nil
}

// Products lists every product ordered by handle.
func (c *Catalog) Products(_ context.Context) []domain.Product {
	out := make([]domain.Product, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, c.products[h])
	}
	return out
}

// CustomizableTitle returns the title that marks a product as customizable.
func (c *Catalog) CustomizableTitle() string {
	return c.customizableTitle
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
