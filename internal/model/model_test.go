package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "example.com", want: "example.com"},
		{in: "https://www.Example.com/", want: "example.com"},
		{in: "http://blog.example.com/path/page", want: "blog.example.com"},
		{in: "  www.example.com  ", want: "example.com"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, NormalizeDomain(tt.in)); diff != "" {
				t.Errorf("NormalizeDomain(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestGuessIntent(t *testing.T) {
	tests := []struct {
		keyword string
		want    Intent
	}{
		{keyword: "buy running shoes", want: IntentTransactional},
		{keyword: "running shoes prices", want: IntentTransactional},
		{keyword: "best running shoes", want: IntentCommercial},
		{keyword: "nike vs adidas", want: IntentCommercial},
		{keyword: "how to tie running shoes", want: IntentInformational},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, GuessIntent(tt.keyword)); diff != "" {
				t.Errorf("GuessIntent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]string
		want    Settings
		wantErr bool
	}{
		{
			name: "empty uses defaults",
			raw:  map[string]string{},
			want: DefaultSettings(),
		},
		{
			name: "overrides",
			raw: map[string]string{
				KeyAlertThreshold:   "5",
				KeyTargetDomain:     "https://www.example.com/",
				KeyArchiveWeeks:     "13",
				KeyAutoDiscovery:    "true",
				KeyDiscoveryExclude: "brand, re:^how",
			},
			want: func() Settings {
				s := DefaultSettings()
				s.AlertThreshold = 5
				s.TargetDomain = "example.com"
				s.ArchiveWeeks = 13
				s.AutoDiscovery = true
				s.DiscoveryExclude = "brand, re:^how"
				return s
			}(),
		},
		{
			name:    "non numeric threshold",
			raw:     map[string]string{KeyAlertThreshold: "three"},
			wantErr: true,
		},
		{
			name:    "zero threshold",
			raw:     map[string]string{KeyAlertThreshold: "0"},
			wantErr: true,
		},
		{
			name:    "bad bool",
			raw:     map[string]string{KeyAutoDiscovery: "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSettings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
