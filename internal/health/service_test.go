package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
		want Report
	}{
		{"memory", NewService(nil), Report{OK: true, Database: "memory"}},
		{"up", NewService(fakePinger{}), Report{OK: true, Database: "up"}},
		{"down", NewService(fakePinger{err: errors.New("refused")}), Report{OK: false, Database: "down"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.svc.Status(context.Background()); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
