package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Product is a browse-only catalog entry.
type Product struct {
	ID          string   `mapstructure:"id" json:"id"`
	Name        string   `mapstructure:"nombre" json:"nombre"`
	Price       int64    `mapstructure:"precio" json:"precio"`
	Description string   `mapstructure:"descripcion" json:"descripcion"`
	Ingredients []string `mapstructure:"ingredientes" json:"ingredientes"`
	Kind        string   `mapstructure:"tipo" json:"tipo"`
}

type CatalogConfig struct {
	Products []Product `mapstructure:"products"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Products: []Product{
			{ID: "P001", Name: "Margherita", Price: 22000, Description: "Base de tomate y mozzarella fresca.", Ingredients: []string{"salsa de tomate", "mozzarella", "albahaca", "aceite de oliva"}, Kind: "pizza"},
			{ID: "P002", Name: "Pepperoni", Price: 25000, Description: "Clásica con doble pepperoni.", Ingredients: []string{"pepperoni", "mozzarella", "orégano"}, Kind: "pizza"},
			{ID: "P003", Name: "Hawaiana", Price: 24000, Description: "Dulce y salada.", Ingredients: []string{"jamón", "piña", "queso", "salsa de tomate"}, Kind: "pizza"},
			{ID: "P004", Name: "Cuatro Quesos", Price: 26000, Description: "Mezcla cremosa de quesos.", Ingredients: []string{"mozzarella", "gorgonzola", "parmesano", "provolone"}, Kind: "pizza"},
			{ID: "P005", Name: "Vegetariana", Price: 23000, Description: "Cargada de vegetales frescos.", Ingredients: []string{"pimentón", "champiñón", "aceitunas", "cebolla morada"}, Kind: "pizza"},
			{ID: "P006", Name: "BBQ Pollo", Price: 27000, Description: "Salsa BBQ ahumada.", Ingredients: []string{"pollo", "salsa BBQ", "queso", "maíz tierno"}, Kind: "pizza"},
			{ID: "P007", Name: "Mexicana", Price: 26000, Description: "Un toque picante.", Ingredients: []string{"carne molida", "jalapeños", "queso", "frijol"}, Kind: "pizza"},
			{ID: "P008", Name: "Carbonara", Price: 28000, Description: "Inspirada en la pasta clásica.", Ingredients: []string{"tocineta", "huevo", "queso pecorino", "pimienta negra"}, Kind: "pizza"},
			{ID: "B001", Name: "Gaseosa Cola 350ml", Price: 4500, Description: "Bebida gaseosa sabor cola 350ml", Ingredients: []string{}, Kind: "bebida"},
			{ID: "B002", Name: "Gaseosa Naranja 350ml", Price: 4500, Description: "Bebida gaseosa sabor naranja 350ml", Ingredients: []string{}, Kind: "bebida"},
			{ID: "B003", Name: "Agua con gas 500ml", Price: 4000, Description: "Agua mineral con gas 500ml", Ingredients: []string{}, Kind: "bebida"},
			{ID: "B004", Name: "Agua sin gas 500ml", Price: 3500, Description: "Agua mineral sin gas 500ml", Ingredients: []string{}, Kind: "bebida"},
			{ID: "B005", Name: "Té frío limón 400ml", Price: 5000, Description: "Té frío sabor limón 400ml", Ingredients: []string{}, Kind: "bebida"},
		},
	}
}

type CatalogHolder struct {
	current atomic.Value // holds CatalogConfig
}

// NewStaticCatalogHolder serves a fixed catalog without watching any file.
func NewStaticCatalogHolder(cfg CatalogConfig) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(cfg)
	return holder
}

var catalogPaths = []string{
	"/var/lib/panucci/config", // Volume-mounted config
	"/etc/panucci",            // System config
	".",                       // Current directory (dev mode)
}

func NewCatalogHolder(log *zap.Logger) (*CatalogHolder, error) {
	return newCatalogHolder(log, catalogPaths...)
}

func newCatalogHolder(log *zap.Logger, paths ...string) (*CatalogHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalog.config")

	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("PANUCCI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("catalog file not found, serving built-in products")
		return NewStaticCatalogHolder(DefaultCatalogConfig()), nil
	}

	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validateCatalogConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCatalogHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CatalogConfig
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Warn("catalog reload failed", zap.Error(err))
			return
		}
		if err := validateCatalogConfig(updated); err != nil {
			log.Warn("invalid catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("catalog reloaded", zap.String("file", e.Name), zap.Int("products", len(updated.Products)))
	})

	return holder, nil
}

func (h *CatalogHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if len(cfg.Products) == 0 {
		return errors.New("catalog.products cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Products))
	for _, p := range cfg.Products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return errors.New("catalog.products[].id is required")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("catalog.products: duplicate id %q", id)
		}
		seen[id] = struct{}{}
		if p.Price < 0 {
			return fmt.Errorf("catalog.products[%s].precio must not be negative", id)
		}
	}
	return nil
}
