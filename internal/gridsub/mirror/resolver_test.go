package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_InStore(t *testing.T) {
	r := NewResolver("/hdfs")

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"store root", "/hdfs", true},
		{"under store", "/hdfs/user/alice/in.txt", true},
		{"store with trailing dot segments", "/hdfs/user/../user/in.txt", true},
		{"local absolute", "/data/in.txt", false},
		{"local relative", "in.txt", false},
		{"prefix but not a directory boundary", "/hdfs2/in.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.InStore(tt.path))
		})
	}
}

func TestResolver_Classify(t *testing.T) {
	r := NewResolver("/hdfs")

	ref := r.Classify("/hdfs/user/alice/in.txt")
	assert.Equal(t, ClassStaged, ref.Class)
	assert.Equal(t, "staged", ref.Class.String())

	ref = r.Classify("/data/in.txt")
	assert.Equal(t, ClassLocal, ref.Class)
	assert.Equal(t, "local", ref.Class.String())

	assert.Equal(t, "unknown", ClassUnknown.String())
}

func TestResolver_ResolveInput(t *testing.T) {
	r := NewResolver("/hdfs")

	t.Run("local input stages under staging dir", func(t *testing.T) {
		m := r.ResolveInput("/data/in.txt", "/hdfs/store/jobA")

		assert.Equal(t, "/data/in.txt", m.Original)
		assert.Equal(t, "/hdfs/store/jobA/in.txt", m.Staged)
		assert.Equal(t, "in.txt", m.Working)
		assert.True(t, m.NeedsStaging())
	})

	t.Run("store-resident input is used in place", func(t *testing.T) {
		m := r.ResolveInput("/hdfs/user/alice/big.root", "/hdfs/store/jobA")

		assert.Equal(t, "/hdfs/user/alice/big.root", m.Original)
		assert.Equal(t, m.Original, m.Staged)
		assert.Equal(t, "big.root", m.Working)
		assert.False(t, m.NeedsStaging())
	})

	t.Run("relative input", func(t *testing.T) {
		m := r.ResolveInput("scripts/run.sh", "/hdfs/store/jobA")

		assert.Equal(t, "/hdfs/store/jobA/run.sh", m.Staged)
		assert.Equal(t, "run.sh", m.Working)
	})
}

func TestResolver_ResolveOutput(t *testing.T) {
	r := NewResolver("/hdfs")

	t.Run("local output written in place then published", func(t *testing.T) {
		m := r.ResolveOutput("out/result.txt", "/hdfs/store/jobA")

		assert.Equal(t, "out/result.txt", m.Original)
		assert.Equal(t, "/hdfs/store/jobA/result.txt", m.Staged)
		// outputs not destined for the store keep their own path as the
		// working copy; they cannot be streamed like inputs
		assert.Equal(t, "out/result.txt", m.Working)
	})

	t.Run("store-resident output is the destination verbatim", func(t *testing.T) {
		m := r.ResolveOutput("/hdfs/user/alice/result.txt", "/hdfs/store/jobA")

		assert.Equal(t, m.Original, m.Staged)
		assert.Equal(t, "result.txt", m.Working)
		assert.False(t, m.NeedsStaging())
	})
}

func TestResolver_CustomPrefix(t *testing.T) {
	r := NewResolver("/storage")

	assert.True(t, r.InStore("/storage/user/out.txt"))
	assert.False(t, r.InStore("/hdfs/user/out.txt"))

	m := r.ResolveInput("/hdfs/user/out.txt", "/storage/stage")
	assert.Equal(t, "/storage/stage/out.txt", m.Staged)
}
