// Command seed creates the schema and a small demo catalog with a filled
// cart, then prints a bearer token for the demo buyer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/auth"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/config"
	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

func main() {
	buyerID := flag.Int64("buyer", 1, "buyer id to fill a cart for")
	sellerID := flag.Int64("seller", 100, "seller id owning the demo products")
	stock := flag.Int("stock", 30, "starting stock per product and variant")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.OpenDB(cfg.DSN, 2)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 1. --- Schema ---
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// 2. --- Taxonomy ---
	cat := catalog.NewSQLCatalog(db)
	kitchen, err := cat.CreateCategory(ctx, "Home & Kitchen")
	if err != nil {
		log.Fatalf("Failed to seed category: %v", err)
	}
	apparel, err := cat.CreateCategory(ctx, "Apparel")
	if err != nil {
		log.Fatalf("Failed to seed category: %v", err)
	}
	acme, err := cat.CreateBrand(ctx, "Acme Goods")
	if err != nil {
		log.Fatalf("Failed to seed brand: %v", err)
	}

	// 3. --- Products & Variants ---
	mug := &models.Product{
		SellerID: *sellerID, CategoryID: &kitchen.ID, BrandID: &acme.ID,
		Name: "Enamel Mug", Price: decimal.RequireFromString("8.00"), StockQuantity: *stock, ImageURL: "/img/mug.jpg",
	}
	shirt := &models.Product{
		SellerID: *sellerID, CategoryID: &apparel.ID,
		Name: "Logo T-Shirt", Price: decimal.RequireFromString("19.99"), StockQuantity: *stock, ImageURL: "/img/shirt.jpg",
	}
	for _, p := range []*models.Product{mug, shirt} {
		if err := cat.CreateProduct(ctx, p); err != nil {
			log.Fatalf("Failed to seed product: %v", err)
		}
	}

	var sizes []*models.ProductVariant
	for _, size := range []string{"S", "M", "L"} {
		v := &models.ProductVariant{
			ProductID:     shirt.ID,
			Price:         decimal.RequireFromString("21.50"),
			StockQuantity: *stock,
			Options:       models.Attributes{"size": size},
		}
		if err := cat.CreateVariant(ctx, v); err != nil {
			log.Fatalf("Failed to seed variant: %v", err)
		}
		sizes = append(sizes, v)
	}

	// 4. --- Cart ---
	carts := cart.NewSQLStore(db)
	items := []*models.CartItem{
		{UserID: *buyerID, ProductID: mug.ID, SellerID: *sellerID, Price: mug.Price, Quantity: 2, ImageURL: mug.ImageURL},
		{UserID: *buyerID, ProductID: shirt.ID, VariantID: &sizes[1].ID, SellerID: *sellerID, Price: sizes[1].Price, Quantity: 1, ImageURL: shirt.ImageURL, Attributes: sizes[1].Options},
	}
	for _, item := range items {
		if err := carts.Add(ctx, item); err != nil {
			log.Fatalf("Failed to seed cart item: %v", err)
		}
	}

	// 5. --- Token ---
	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.DefaultTTL)
	if err != nil {
		log.Fatalf("CRITICAL ERROR: JWT_SECRET environment variable is not set: %v", err)
	}
	token, err := tokens.GenerateToken(*buyerID)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	log.Printf("Seeded products %d and %d, cart items %d and %d for buyer %d", mug.ID, shirt.ID, items[0].ID, items[1].ID, *buyerID)
	fmt.Println(token)
}
