package matching

// DiscoverParams are the query parameters of the discovery feed.
type DiscoverParams struct {
	PageSize int    `validate:"gte=0,lte=1000"`
	Cursor   string `validate:"max=128"`
}

type LikeResponse struct {
	IsNewMutualMatch bool   `json:"is_new_mutual_match"`
	Match            *Match `json:"match"`
}

type MatchListResponse struct {
	Matches []*Match `json:"matches"`
	Count   int      `json:"count"`
}

func newMatchListResponse(matches []*Match) MatchListResponse {
	if matches == nil {
		matches = []*Match{}
	}
	return MatchListResponse{Matches: matches, Count: len(matches)}
}
