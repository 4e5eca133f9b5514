package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/asaidimu/go-autoquery/config"
	"github.com/asaidimu/go-autoquery/core/autoquery"
	"github.com/asaidimu/go-autoquery/core/schema"
	"github.com/asaidimu/go-autoquery/sqlite"
)

const dbFileName = "orders.db"

// QueryOrders is a declarative query request over the Order entity.
type QueryOrders struct {
	autoquery.QueryBase
	CustomerName   string   `json:"customerName,omitempty"`
	AmountAbove    *float64 `json:"amountAbove,omitempty"`
	StatusIn       []string `json:"statusIn,omitempty"`
	CityStartsWith string   `json:"cityStartsWith,omitempty"`
}

// CreateOrder stores a new order row.
type CreateOrder struct {
	autoquery.QueryBase
	ID           int64   `json:"id"`
	CustomerName string  `json:"customerName"`
	City         string  `json:"city"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
}

func main() {
	if err := os.Remove(dbFileName); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing database file %s: %v", dbFileName, err)
	}

	db, err := sql.Open("sqlite3", dbFileName)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			log.Printf("Error closing database connection: %v", cErr)
		}
	}()

	if err := seedDatabase(db); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("Seeded 'orders' table.")

	cfg, err := config.Load("autoquery.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	executor, err := sqlite.NewExecutor(db)
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	engine, err := autoquery.NewEngine(executor, buildCatalog(), cfg.Options(),
		autoquery.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	registerRequests(engine)

	unsubscribe := engine.Subscribe(autoquery.QuerySuccess, func(ctx context.Context, event autoquery.QueryEvent) error {
		fmt.Printf("event: %s request=%s entity=%s\n", event.Type, event.Request, event.Entity)
		return nil
	})
	defer unsubscribe()

	ctx := context.Background()

	fmt.Println("\nOrders with Amount > 100, newest first:")
	amount := 100.0
	resp, err := engine.Query(ctx, "QueryOrders", &QueryOrders{
		AmountAbove: &amount,
		QueryBase:   autoquery.QueryBase{OrderByDesc: "Id"},
	})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printOrders(resp)

	fmt.Println("\nShipped or pending orders in cities starting with 'S':")
	resp, err = engine.Query(ctx, "QueryOrders", &QueryOrders{
		StatusIn:       []string{"shipped", "pending"},
		CityStartsWith: "S",
	})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printOrders(resp)

	fmt.Println("\nUntyped parameters with aggregates:")
	resp, err = engine.Execute(ctx, "QueryOrders",
		&QueryOrders{QueryBase: autoquery.QueryBase{Include: "total, Sum(Amount), Max(Amount) as Largest"}},
		map[string]string{"CityStartsWith": "S"})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printOrders(resp)
	if resp.Total != nil {
		fmt.Printf("total matching rows: %d\n", *resp.Total)
	}
	for key, value := range resp.Meta {
		fmt.Printf("meta %s = %s\n", key, value)
	}

	fmt.Println("\nCreating a new order through write dispatch:")
	write, err := engine.ExecuteWrite(ctx, "CreateOrder", &CreateOrder{
		ID: 6, CustomerName: "Frank Reed", City: "Sydney", Status: "pending", Amount: 310.40,
	})
	if err != nil {
		log.Fatalf("Write failed: %v", err)
	}
	fmt.Printf("stored row: %v\n", write.Row)

	fmt.Printf("\nDatabase written to %s; inspect it with: sqlite3 %s 'SELECT * FROM orders;'\n",
		dbFileName, dbFileName)
}

func seedDatabase(db *sql.DB) error {
	ddl := `CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_name TEXT NOT NULL,
		city TEXT NOT NULL,
		status TEXT NOT NULL,
		amount REAL NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	seed := `INSERT INTO orders (id, customer_name, city, status, amount) VALUES
		(1, 'Alice Smith', 'Seattle', 'shipped', 120.50),
		(2, 'Bob Jones', 'Portland', 'pending', 75.00),
		(3, 'Carol White', 'Seattle', 'shipped', 240.10),
		(4, 'Dan Brown', 'San Diego', 'cancelled', 98.99),
		(5, 'Eve Black', 'Austin', 'pending', 150.25)`
	_, err := db.Exec(seed)
	return err
}

func buildCatalog() *schema.Catalog {
	order, err := schema.NewEntity("Order", "orders",
		&schema.FieldDefinition{Name: "Id", Column: "id", Type: schema.FieldTypeInteger, PrimaryKey: true},
		&schema.FieldDefinition{Name: "CustomerName", Column: "customer_name", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "City", Column: "city", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "Status", Column: "status", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "Amount", Column: "amount", Type: schema.FieldTypeNumber},
	)
	if err != nil {
		log.Fatalf("Failed to define Order entity: %v", err)
	}

	catalog := schema.NewCatalog()
	catalog.MustRegister(order)
	return catalog
}

func registerRequests(engine *autoquery.Engine) {
	engine.MustRegister(&autoquery.RequestDescriptor{
		Name:   "QueryOrders",
		Entity: "Order",
		Properties: []autoquery.PropertySpec{
			{Name: "CustomerName", Get: func(req autoquery.Request) any {
				if v := req.(*QueryOrders).CustomerName; v != "" {
					return v
				}
				return nil
			}},
			{Name: "AmountAbove", Get: func(req autoquery.Request) any {
				if v := req.(*QueryOrders).AmountAbove; v != nil {
					return *v
				}
				return nil
			}},
			{Name: "StatusIn", Get: func(req autoquery.Request) any {
				if v := req.(*QueryOrders).StatusIn; len(v) > 0 {
					return v
				}
				return nil
			}},
			{Name: "CityStartsWith", Get: func(req autoquery.Request) any {
				if v := req.(*QueryOrders).CityStartsWith; v != "" {
					return v
				}
				return nil
			}},
		},
	})

	engine.MustRegister(&autoquery.RequestDescriptor{
		Name:      "CreateOrder",
		Operation: autoquery.OpCreate,
		Entity:    "Order",
		Row: func(req autoquery.Request) map[string]any {
			c := req.(*CreateOrder)
			return map[string]any{
				"Id":           c.ID,
				"CustomerName": c.CustomerName,
				"City":         c.City,
				"Status":       c.Status,
				"Amount":       c.Amount,
			}
		},
	})
}

func printOrders(resp *autoquery.QueryResponse) {
	fmt.Println("----------------------------------------------------------------")
	fmt.Printf("%-5s %-20s %-12s %-10s %-8s\n", "ID", "Customer", "City", "Status", "Amount")
	fmt.Println("----------------------------------------------------------------")
	for _, row := range resp.Results {
		fmt.Printf("%-5v %-20v %-12v %-10v %-8v\n",
			row["id"], row["customer_name"], row["city"], row["status"], row["amount"])
	}
	fmt.Println("----------------------------------------------------------------")
}
