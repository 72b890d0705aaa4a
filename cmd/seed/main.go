// Command seed loads sample catalog items so a fresh storefront has
// something to sell.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/freshmart/storefront/internal/catalog"
	"github.com/freshmart/storefront/internal/config"
	"github.com/freshmart/storefront/internal/db"
)

var sampleItems = []catalog.Item{
	{
		Title:       "Fresh Organic Bananas",
		Description: "Sweet, ripe organic bananas perfect for snacking or baking",
		Price:       2.99,
		Category:    "Fruits",
		Image:       "https://images.unsplash.com/photo-1571771894821-ce9b6c11b08e?w=400&h=400&fit=crop",
	},
	{
		Title:       "Premium Basmati Rice",
		Description: "Long grain basmati rice, perfect for biryani and pulao",
		Price:       4.99,
		Category:    "Grains",
		Image:       "https://images.unsplash.com/photo-1586201375761-83865001e31c?w=400&h=400&fit=crop",
	},
	{
		Title:       "Farm Fresh Eggs",
		Description: "One dozen free-range eggs from local farms",
		Price:       3.49,
		Category:    "Dairy",
		Image:       "https://images.unsplash.com/photo-1582722872445-44dc5f7e3c8f?w=400&h=400&fit=crop",
	},
	{
		Title:       "Whole Wheat Bread",
		Description: "Freshly baked whole wheat loaf, sliced",
		Price:       2.49,
		Category:    "Bakery",
		Image:       "https://images.unsplash.com/photo-1509440159596-0249088772ff?w=400&h=400&fit=crop",
	},
	{
		Title:       "Organic Baby Spinach",
		Description: "Tender baby spinach leaves, washed and ready to eat",
		Price:       3.99,
		Category:    "Vegetables",
		Image:       "https://images.unsplash.com/photo-1576045057995-568f588f82fb?w=400&h=400&fit=crop",
	},
	{
		Title:       "Greek Yogurt",
		Description: "Creamy plain Greek yogurt, high in protein",
		Price:       5.49,
		Category:    "Dairy",
		Image:       "https://images.unsplash.com/photo-1488477181946-6428a0291777?w=400&h=400&fit=crop",
	},
	{
		Title:       "Roma Tomatoes",
		Description: "Vine-ripened roma tomatoes, sold per pound",
		Price:       1.99,
		Category:    "Vegetables",
		Image:       "https://images.unsplash.com/photo-1546094096-0df4bcaaa337?w=400&h=400&fit=crop",
	},
	{
		Title:       "Cold Brew Coffee",
		Description: "Smooth cold brew concentrate, 32 oz bottle",
		Price:       6.99,
		Category:    "Beverages",
		Image:       "https://images.unsplash.com/photo-1517701604599-bb29b565090c?w=400&h=400&fit=crop",
	},
}

func main() {
	force := flag.Bool("force", false, "insert sample items even when the catalog is not empty")
	flag.Parse()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)

	if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer pool.Close()

	if !*force {
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
			logger.Fatalf("count items: %v", err)
		}
		if count > 0 {
			logger.Printf("catalog already has %d items, use -force to add samples anyway", count)
			return
		}
	}

	repo := catalog.NewPostgresRepository(pool)
	for i := range sampleItems {
		if err := repo.Create(ctx, &sampleItems[i]); err != nil {
			logger.Fatalf("insert %q: %v", sampleItems[i].Title, err)
		}
		logger.Printf("added %q ($%.2f, id %d)", sampleItems[i].Title, sampleItems[i].Price, sampleItems[i].ID)
	}

	logger.Printf("seeded %d items", len(sampleItems))
}
