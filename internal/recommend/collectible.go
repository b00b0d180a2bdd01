package recommend

const CollectibleTag = "HS-AI-TRIAGE"

// Collectible is the community reward attached to a finished check.
type Collectible struct {
	TagCode      string `json:"tag_code"`
	Label        string `json:"label"`
	CommunityURL string `json:"community_url"`
}

func IssueCollectible() Collectible {
	return Collectible{
		TagCode:      CollectibleTag,
		Label:        "Health Insight Pass",
		CommunityURL: "/community/?tag=" + CollectibleTag,
	}
}
