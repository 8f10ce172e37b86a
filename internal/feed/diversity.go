package feed

// MaxConsecutivePerCreator caps how many posts from one creator may appear
// back to back in the final feed.
const MaxConsecutivePerCreator = 3

// EnforceDiversity makes a single pass over the interleaved list, dropping
// any post whose creator already produced MaxConsecutivePerCreator
// consecutive entries. Creator keys carry their identity namespace, so local
// and remote creators never collide.
func EnforceDiversity(posts []ScoredPost) []ScoredPost {
	out := make([]ScoredPost, 0, len(posts))
	lastCreator := ""
	consecutive := 0

	for _, sp := range posts {
		key := sp.Post.CreatorKey()
		if key == lastCreator {
			if consecutive >= MaxConsecutivePerCreator {
				continue
			}
			consecutive++
		} else {
			lastCreator = key
			consecutive = 1
		}
		out = append(out, sp)
	}
	return out
}
