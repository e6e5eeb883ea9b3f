package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// repositoryContract runs the behaviour every Repository must have.
func repositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := repo.Get(ctx, KindTaxpayer, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("put and get", func(t *testing.T) {
		doc := Document{Kind: KindTaxpayer, ID: "100000001", Data: json.RawMessage(`{"tin":"100000001","name":"Mwanza Traders"}`)}
		if err := repo.Put(ctx, doc); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := repo.Get(ctx, KindTaxpayer, "100000001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		var v map[string]any
		if err := json.Unmarshal(got.Data, &v); err != nil {
			t.Fatalf("stored data is not json: %v", err)
		}
		if v["name"] != "Mwanza Traders" {
			t.Errorf("name = %v", v["name"])
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}
	})

	t.Run("replace keeps created time", func(t *testing.T) {
		before, err := repo.Get(ctx, KindTaxpayer, "100000001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if err := repo.Put(ctx, Document{Kind: KindTaxpayer, ID: "100000001", Data: json.RawMessage(`{"name":"renamed"}`)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		after, err := repo.Get(ctx, KindTaxpayer, "100000001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !after.CreatedAt.Equal(before.CreatedAt) {
			t.Errorf("CreatedAt changed from %v to %v", before.CreatedAt, after.CreatedAt)
		}
		if n, _ := repo.Count(ctx, KindTaxpayer); n != 1 {
			t.Errorf("Count = %d, want 1", n)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"a-1", "a-2", "a-3"} {
			doc := Document{Kind: KindAssessment, ID: id, Data: json.RawMessage(`{}`), CreatedAt: base.Add(time.Duration(i) * time.Hour)}
			if err := repo.Put(ctx, doc); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		docs, err := repo.List(ctx, KindAssessment)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var ids []string
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		if len(ids) != 3 || ids[0] != "a-3" || ids[2] != "a-1" {
			t.Errorf("List order = %v, want [a-3 a-2 a-1]", ids)
		}
	})

	t.Run("list by parent", func(t *testing.T) {
		for _, d := range []Document{
			{Kind: KindChainRecord, ID: "l-1", ParentID: "a-1", Data: json.RawMessage(`{}`)},
			{Kind: KindChainRecord, ID: "l-2", ParentID: "a-2", Data: json.RawMessage(`{}`)},
			{Kind: KindChainRecord, ID: "l-3", ParentID: "a-1", Data: json.RawMessage(`{}`)},
		} {
			if err := repo.Put(ctx, d); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		docs, err := repo.ListByParent(ctx, KindChainRecord, "a-1")
		if err != nil {
			t.Fatalf("ListByParent: %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("got %d entries, want 2", len(docs))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, KindAssessment, "a-2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := repo.Delete(ctx, KindAssessment, "a-2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
		if n, _ := repo.Count(ctx, KindAssessment); n != 2 {
			t.Errorf("Count = %d, want 2", n)
		}
	})
}

func TestMemory(t *testing.T) {
	repositoryContract(t, NewMemory())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	data := json.RawMessage(`{"a":1}`)
	if err := m.Put(ctx, Document{Kind: KindAudit, ID: "x", Data: data}); err != nil {
		t.Fatal(err)
	}
	data[2] = 'b'

	got, _ := m.Get(ctx, KindAudit, "x")
	got.Data[2] = 'c'

	again, _ := m.Get(ctx, KindAudit, "x")
	if string(again.Data) != `{"a":1}` {
		t.Errorf("stored data was modified: %s", again.Data)
	}
}
