package domain

import (
	"errors"
	"testing"
)

func TestValidateNodeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "lobby-1", false},
		{"empty", "", true},
		{"delimiter", "a;b", true},
		{"whitespace", " a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateNodeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestAliasRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want string
	}{
		{"lobby", "10.0.0.5", 25365, "lobby;10.0.0.5:25365"},
		{"survival", "::1", 9000, "survival;[::1]:9000"},
		{"hub", "hub.example.net", 1, "hub;hub.example.net:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alias := FormatAlias(tt.name, tt.host, tt.port)
			if alias != tt.want {
				t.Fatalf("FormatAlias() = %q, want %q", alias, tt.want)
			}
			name, host, port, err := ParseAlias(alias)
			if err != nil {
				t.Fatalf("ParseAlias() error = %v", err)
			}
			if name != tt.name || host != tt.host || port != tt.port {
				t.Errorf("ParseAlias() = (%q, %q, %d), want (%q, %q, %d)",
					name, host, port, tt.name, tt.host, tt.port)
			}
		})
	}
}

func TestParseAlias_Invalid(t *testing.T) {
	for _, alias := range []string{"", "noaddr", ";host:1", "a;host", "a;host:0", "a;host:x"} {
		if _, _, _, err := ParseAlias(alias); !errors.Is(err, ErrInvalidTrustEntry) {
			t.Errorf("ParseAlias(%q) error = %v, want ErrInvalidTrustEntry", alias, err)
		}
	}
}

func TestIsReservedTable(t *testing.T) {
	for _, name := range []string{"servers", "players", "worlds"} {
		if !IsReservedTable(name) {
			t.Errorf("IsReservedTable(%q) = false", name)
		}
	}
	if IsReservedTable("parties") {
		t.Error("IsReservedTable(parties) = true")
	}
}
