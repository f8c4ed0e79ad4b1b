package fetcher

import (
	"testing"
)

func TestParseBulkDocuments(t *testing.T) {
	input := `{"_index":"articles","_id":"a1","fields":{"title":"vector database"}}
{"_index":"articles","_id":"a2","fields":{"title":"great search"}}
`
	docs, err := ParseBulkDocuments([]byte(input))
	if err != nil {
		t.Fatalf("ParseBulkDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Index != "articles" || docs[0].ID != "a1" {
		t.Errorf("unexpected first doc: %+v", docs[0])
	}
	if docs[1].ID != "a2" {
		t.Errorf("unexpected second doc: %+v", docs[1])
	}
}

func TestParseBulkDocumentsSkipsBlankLines(t *testing.T) {
	input := "\n{\"_index\":\"articles\",\"_id\":\"a1\",\"fields\":{}}\n\n"
	docs, err := ParseBulkDocuments([]byte(input))
	if err != nil {
		t.Fatalf("ParseBulkDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
}

func TestParseBulkDocumentsMissingIndex(t *testing.T) {
	input := `{"_id":"a1","fields":{}}`
	if _, err := ParseBulkDocuments([]byte(input)); err == nil {
		t.Error("expected error for missing _index")
	}
}

func TestParseBulkDocumentsMissingID(t *testing.T) {
	input := `{"_index":"articles","fields":{}}`
	if _, err := ParseBulkDocuments([]byte(input)); err == nil {
		t.Error("expected error for missing _id")
	}
}
