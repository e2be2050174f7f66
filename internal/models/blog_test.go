package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikeCount(t *testing.T) {
	post := &BlogPost{Likes: map[string]bool{}}
	assert.Equal(t, 0, post.LikeCount())

	post.Likes = map[string]bool{
		"u1": true,
		"u2": false, // explicit false must not be counted
		"u3": true,
	}
	assert.Equal(t, 2, post.LikeCount())
}

func TestLikedBy(t *testing.T) {
	post := &BlogPost{Likes: map[string]bool{"u1": true, "u2": false}}

	assert.True(t, post.LikedBy("u1"))
	assert.False(t, post.LikedBy("u2"))
	assert.False(t, post.LikedBy("u9"))
	assert.False(t, post.LikedBy(""))
}

func TestCopyIsIndependent(t *testing.T) {
	post := &BlogPost{
		ID:        "a1",
		Likes:     map[string]bool{"u1": true},
		PaidUsers: []string{"u9"},
	}

	dup := post.Copy()
	dup.Likes["u2"] = true
	dup.PaidUsers = append(dup.PaidUsers, "u2")

	assert.Equal(t, 1, len(post.Likes))
	assert.Equal(t, []string{"u9"}, post.PaidUsers)
}
