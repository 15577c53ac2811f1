package corpus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

func TestIntentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewIntentRepo(db, testutil.Logger(t))

	greet := &domain.Intent{
		ID:        uuid.New(),
		Name:      "greet",
		Bot:       bot,
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	deny := &domain.Intent{
		ID:        uuid.New(),
		Name:      "deny",
		Bot:       bot,
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC().Add(time.Second),
	}

	created, err := repo.Create(dbc, []*domain.Intent{greet, deny})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("Create: expected 2, got %d", len(created))
	}

	// name matching is case-insensitive
	if ok, err := repo.ExistsByName(dbc, bot, "GREET"); err != nil || !ok {
		t.Fatalf("ExistsByName: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByName(dbc, bot, "greet")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != greet.ID {
		t.Fatalf("GetByName: expected %s, got %s", greet.ID, got.ID)
	}

	rows, err := repo.List(dbc, bot)
	if err != nil || len(rows) != 2 {
		t.Fatalf("List: err=%v len=%d", err, len(rows))
	}

	if err := repo.SoftDelete(dbc, bot, "greet", "deleter@kairon.ai"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if ok, _ := repo.ExistsByName(dbc, bot, "greet"); ok {
		t.Fatalf("ExistsByName after SoftDelete: expected false")
	}
	rows, err = repo.List(dbc, bot)
	if err != nil || len(rows) != 1 {
		t.Fatalf("List after SoftDelete: err=%v len=%d", err, len(rows))
	}

	// the soft-deleted row stays in the table; List hides it
	var total int64
	if err := tx.Model(&domain.Intent{}).Where("bot = ?", bot).Count(&total).Error; err != nil || total != 2 {
		t.Fatalf("raw count: err=%v total=%d", err, total)
	}

	// re-creating the same name after soft delete is allowed
	again := &domain.Intent{
		ID:        uuid.New(),
		Name:      "greet",
		Bot:       bot,
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if _, err := repo.Create(dbc, []*domain.Intent{again}); err != nil {
		t.Fatalf("Create after SoftDelete: %v", err)
	}

	if err := repo.HardDeleteForBot(dbc, bot); err != nil {
		t.Fatalf("HardDeleteForBot: %v", err)
	}
	if err := tx.Model(&domain.Intent{}).Where("bot = ?", bot).Count(&total).Error; err != nil || total != 0 {
		t.Fatalf("raw count after hard delete: err=%v total=%d", err, total)
	}
}

func TestIntentRepoScopedByBot(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	botA := testutil.SeedBot(t, tx)
	botB := testutil.SeedBot(t, tx)
	repo := NewIntentRepo(db, testutil.Logger(t))

	if _, err := repo.Create(dbc, []*domain.Intent{{
		ID: uuid.New(), Name: "greet", Bot: botA, User: "a@kairon.ai", Status: true, Timestamp: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := repo.ExistsByName(dbc, botB, "greet"); err != nil || ok {
		t.Fatalf("ExistsByName across bots: ok=%v err=%v", ok, err)
	}
}
