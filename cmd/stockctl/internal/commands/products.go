package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfelder/stockroom/internal/client"
)

type ProductsCmd struct {
	List   ProductListCmd   `cmd:"" default:"1" help:"List your products"`
	Add    ProductAddCmd    `cmd:"" help:"Add a product"`
	Update ProductUpdateCmd `cmd:"" help:"Update a product"`
	Rm     ProductRmCmd     `cmd:"" help:"Delete a product"`
}

type ProductListCmd struct{}

func (c *ProductListCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}

	products, err := st.products.List(ctx)
	if err != nil {
		return renderError(err)
	}
	printProducts(products)
	return nil
}

type ProductAddCmd struct {
	Name        string `help:"Product name" required:""`
	Description string `help:"Product description"`
	Cost        string `help:"Unit cost, e.g. 9.99"`
	Banner      string `help:"Path to a banner image" type:"existingfile"`
}

func (c *ProductAddCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}

	fields, closeBanner, err := productFields(c.Name, c.Description, c.Cost, c.Banner)
	if err != nil {
		return err
	}
	defer closeBanner()

	p, err := st.products.Create(ctx, fields)
	if err != nil {
		return renderError(err)
	}
	fmt.Printf("Created product %d: %s\n", p.ID, p.Name)
	return nil
}

type ProductUpdateCmd struct {
	ID          int64  `arg:"" help:"Product ID"`
	Name        string `help:"Product name" required:""`
	Description string `help:"Product description"`
	Cost        string `help:"Unit cost, e.g. 9.99"`
	Banner      string `help:"Path to a replacement banner image" type:"existingfile"`
}

func (c *ProductUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}

	fields, closeBanner, err := productFields(c.Name, c.Description, c.Cost, c.Banner)
	if err != nil {
		return err
	}
	defer closeBanner()

	p, err := st.products.Update(ctx, c.ID, fields)
	if err != nil {
		return renderError(err)
	}
	fmt.Printf("Updated product %d: %s\n", p.ID, p.Name)
	return nil
}

type ProductRmCmd struct {
	ID int64 `arg:"" help:"Product ID"`
}

func (c *ProductRmCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}

	if err := st.products.Delete(ctx, c.ID); err != nil {
		return renderError(err)
	}
	fmt.Printf("Deleted product %d\n", c.ID)
	return nil
}

func productFields(name, description, cost, bannerPath string) (client.ProductFields, func(), error) {
	fields := client.ProductFields{
		Name:        name,
		Description: description,
		Cost:        cost,
	}
	closer := func() {}
	if bannerPath != "" {
		f, err := os.Open(bannerPath)
		if err != nil {
			return fields, closer, fmt.Errorf("open banner: %w", err)
		}
		fields.Banner = f
		fields.BannerName = filepath.Base(bannerPath)
		closer = func() { f.Close() }
	}
	return fields, closer, nil
}

func printProducts(products []client.Product) {
	if len(products) == 0 {
		fmt.Println("No products.")
		return
	}

	fmt.Printf("%-6s %-30s %-10s %s\n", "ID", "Name", "Cost", "Description")
	fmt.Println(strings.Repeat("─", 80))
	for _, p := range products {
		cost := "-"
		if p.Cost != nil {
			cost = fmt.Sprintf("%.2f", *p.Cost)
		}
		desc := p.Description
		if len(desc) > 30 {
			desc = desc[:27] + "..."
		}
		fmt.Printf("%-6d %-30s %-10s %s\n", p.ID, p.Name, cost, desc)
	}
	fmt.Printf("\nTotal: %d\n", len(products))
}
