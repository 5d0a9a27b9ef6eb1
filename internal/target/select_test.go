package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privateer/internal/config"
)

func volumes(names ...string) []config.Target {
	out := make([]config.Target, len(names))
	for i, n := range names {
		out[i] = config.Target{Name: n, Type: config.TargetVolume}
	}
	return out
}

func TestSelect(t *testing.T) {
	all := volumes("vol_1", "vol_2")

	tests := []struct {
		name    string
		include string
		exclude string
		want    []string
	}{
		{
			name: "no filters is identity",
			want: []string{"vol_1", "vol_2"},
		},
		{
			name:    "include all",
			include: "vol_1,vol_2",
			want:    []string{"vol_1", "vol_2"},
		},
		{
			name:    "include ignores surrounding whitespace",
			include: "vol_1, vol_2",
			want:    []string{"vol_1", "vol_2"},
		},
		{
			name:    "include keeps configured order",
			include: "vol_2,vol_1",
			want:    []string{"vol_1", "vol_2"},
		},
		{
			name:    "include one",
			include: "vol_1",
			want:    []string{"vol_1"},
		},
		{
			name:    "include unknown names is empty",
			include: "vol_3",
			want:    []string{},
		},
		{
			name:    "exclude all",
			exclude: "vol_1, vol_2",
			want:    []string{},
		},
		{
			name:    "exclude one",
			exclude: "vol_2",
			want:    []string{"vol_1"},
		},
		{
			name:    "exclude unknown names keeps everything",
			exclude: " vol_9 ",
			want:    []string{"vol_1", "vol_2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.include, tt.exclude, all)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Names(got))
		})
	}
}

func TestSelectExcludeMiddle(t *testing.T) {
	got, err := Select("", "B", volumes("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, volumes("A", "C"), got)
}

func TestSelectBothFilters(t *testing.T) {
	for _, pair := range [][2]string{{"vol_1", "vol_2"}, {"vol_1", "vol_1"}, {"x", "y"}} {
		_, err := Select(pair[0], pair[1], volumes("vol_1", "vol_2"))

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "At most one of --include or --exclude should be provided.", err.Error())
	}
}

func TestSelectDoesNotModifyInput(t *testing.T) {
	all := volumes("a", "b", "c")
	_, err := Select("", "a", all)
	require.NoError(t, err)
	assert.Equal(t, volumes("a", "b", "c"), all)
}
