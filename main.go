package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/db"
	"github.com/skshohagmiah/flin-fanout/internal/fanout"
	"github.com/skshohagmiah/flin-fanout/internal/logger"
)

func main() {
	logger.Setup(logger.Config{Level: os.Getenv("FLIN_LOG_LEVEL"), Format: "text"})

	store, err := db.New("", db.InMemory())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("🚀 Flin Fanout Query Demo")
	fmt.Println("=========================")

	roles := []string{"admin", "editor", "viewer"}
	docs := make([]db.Document, 15)
	for i := range docs {
		docs[i] = db.Document{
			db.FieldID: fmt.Sprintf("user-%02d", i),
			"role":     roles[i%len(roles)],
			"age":      20 + i,
			"tags":     []string{fmt.Sprintf("team-%d", i%4)},
		}
	}
	if _, err := store.InsertMany("users", docs); err != nil {
		log.Fatal(err)
	}
	fmt.Println("\n1. Inserted 15 users")

	// Eleven values is one more than a single store query accepts.
	wanted := []string{"admin", "editor", "viewer", "owner", "guest", "support",
		"billing", "auditor", "intern", "contractor", "bot"}

	fmt.Println("\n2. Direct store query with 11 roles")
	_, err = store.Collection("users").Where("role", collection.OpIn, wanted).Get(context.Background())
	fmt.Printf("   Error: %v\n", err)

	fmt.Println("\n3. Fanout query with 11 roles and a second membership filter")
	q := fanout.New(store, "users", fanout.WithLogger(slog.Default())).
		Where("role", collection.OpIn, wanted).
		Where("tags", collection.OpArrayContainsAny, []string{"team-1", "team-2"}).
		Limit(6)

	plan := q.Plan()
	fmt.Printf("   Physical queries: %d, deferred constraints: %d\n", len(plan.Variants), len(plan.Deferred))

	res, err := q.Get(context.Background(), func(_ context.Context, b fanout.Batch) error {
		fmt.Printf("   Variant %d/%d admitted %d documents\n", b.Variant+1, b.Variants, len(b.Docs))
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n4. Merged result")
	for _, d := range res.Docs {
		fmt.Printf("   %s role=%v tags=%v\n", d.ID(), d.Data()["role"], d.Data()["tags"])
	}
	fmt.Printf("   fetched=%d duplicates=%d rejected=%d truncated=%d\n",
		res.Stats.Fetched, res.Stats.Duplicates, res.Stats.Rejected, res.Stats.Truncated)

	fmt.Println("\n✅ Demo completed successfully!")
}
