package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareMigrations(t *testing.T) {
	for _, tc := range []struct {
		name     string
		wanted   []string
		existing []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "fresh database needs everything",
			wanted:   []string{"one", "two"},
			existing: []string{},
			expected: []string{"one", "two"},
		},
		{
			name:     "up to date needs nothing",
			wanted:   []string{"one", "two"},
			existing: []string{"one", "two"},
			expected: []string{},
		},
		{
			name:     "partially migrated needs the tail",
			wanted:   []string{"one", "two", "three"},
			existing: []string{"one"},
			expected: []string{"two", "three"},
		},
		{
			name:     "database ahead of the code",
			wanted:   []string{"one"},
			existing: []string{"one", "two"},
			wantErr:  true,
		},
		{
			name:     "diverged history",
			wanted:   []string{"one", "two"},
			existing: []string{"one", "other"},
			wantErr:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			needed, err := compareMigrations(tc.wanted, tc.existing)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, needed)
		})
	}
}
