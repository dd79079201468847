package usecase

import (
	"fmt"

	"placesync/internal/saved/domain/model"
)

// IncentiveText is shown when a place has no saves at all.
const IncentiveText = "Be the first to save this spot."

// ProofLine is one rendered social-proof line for a bucket.
type ProofLine struct {
	Kind model.Bucket `json:"kind"`
	Text string       `json:"text"`
}

// ProofInput carries everything line formatting needs: displayed counts
// (overlay already applied), the attributed friend label per bucket, and the
// viewer's own bucket if they saved the place themselves.
type ProofInput struct {
	WishlistCount        int64
	FavouriteCount       int64
	WishlistFriendLabel  string
	FavouriteFriendLabel string
	SelfBucket           model.Bucket
}

// FormatProofLines renders the social-proof lines for a place. Buckets with
// a zero displayed count are omitted; when both are zero a single incentive
// string is returned instead of lines.
func FormatProofLines(in ProofInput) (lines []ProofLine, incentive string) {
	if in.WishlistCount == 0 && in.FavouriteCount == 0 {
		return nil, IncentiveText
	}
	if text := formatBucketLine(in.WishlistCount, in.WishlistFriendLabel, in.SelfBucket == model.BucketWishlist); text != "" {
		lines = append(lines, ProofLine{Kind: model.BucketWishlist, Text: text})
	}
	if text := formatBucketLine(in.FavouriteCount, in.FavouriteFriendLabel, in.SelfBucket == model.BucketFavourite); text != "" {
		lines = append(lines, ProofLine{Kind: model.BucketFavourite, Text: text})
	}
	return lines, ""
}

// formatBucketLine renders one bucket's line. count is the displayed count
// and includes the viewer when self is true.
func formatBucketLine(count int64, friendLabel string, self bool) string {
	if count <= 0 {
		return ""
	}

	if self {
		rest := count - 1
		if friendLabel != "" {
			rest--
			if rest <= 0 {
				return fmt.Sprintf("you and %s", friendLabel)
			}
			return fmt.Sprintf("you, %s and %s", friendLabel, pluralize(rest, "other", "others"))
		}
		if rest <= 0 {
			return "you"
		}
		return fmt.Sprintf("you and %s", pluralize(rest, "other", "others"))
	}

	if friendLabel != "" {
		if count == 1 {
			return friendLabel
		}
		return fmt.Sprintf("%s and %s", friendLabel, pluralize(count-1, "other", "others"))
	}
	return pluralize(count, "person", "people")
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
