package core

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty content",
			doc:     &Document{SourceFile: "a.csv"},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "blank content",
			doc:     &Document{Content: "  \t", SourceFile: "a.csv"},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "missing source file",
			doc:     &Document{Content: "Article 1"},
			wantErr: ErrEmptySourceFile,
		},
		{
			name: "valid document",
			doc:  &Document{Content: "Article 1", SourceFile: "a.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ValidateDocument() error should wrap ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		q       *Question
		wantErr error
	}{
		{name: "nil question", q: nil, wantErr: ErrInvalidQuestion},
		{name: "blank text", q: &Question{Text: "   "}, wantErr: ErrEmptyQuestion},
		{name: "negative limit", q: &Question{Text: "capital", ContextLimit: -1}, wantErr: ErrInvalidContextLimit},
		{name: "zero limit accepted", q: &Question{Text: "capital"}},
		{name: "valid", q: &Question{Text: "capital", ContextLimit: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.q)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuestion() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuestion() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
