package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Platform is the social network a reference points at.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Kind tells a single video apart from a whole account.
type Kind string

const (
	KindVideo   Kind = "video"
	KindAccount Kind = "account"
)

// Reference is a normalized link to a video or account.
type Reference struct {
	Platform Platform `json:"platform"`
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	URL      string   `json:"url"`
}

var youTubeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

var youTubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

var (
	youTubeChannel  = regexp.MustCompile(`youtube\.com/@([a-zA-Z0-9_.-]{3,30})/?$`)
	tikTokVideo     = regexp.MustCompile(`tiktok\.com/@([a-zA-Z0-9_.]{2,24})/video/(\d{8,25})`)
	tikTokAccount   = regexp.MustCompile(`tiktok\.com/@([a-zA-Z0-9_.]{2,24})/?$`)
	instagramVideo  = regexp.MustCompile(`instagram\.com/(?:reel|reels|p)/([a-zA-Z0-9_-]{5,40})`)
	instagramHandle = regexp.MustCompile(`instagram\.com/([a-zA-Z0-9_.]{1,30})/?$`)
	bareHandle      = regexp.MustCompile(`^@([a-zA-Z0-9_.]{2,30})$`)
)

// ParseReference normalizes a video link, account link or handle.
// Supports:
//   - YouTube watch, youtu.be, embed and shorts URLs, plain video IDs and
//     @channel pages
//   - TikTok video and @account URLs
//   - Instagram reel/post URLs and profile URLs
//   - A bare @handle, treated as a TikTok account
func ParseReference(input string) (Reference, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reference{}, fmt.Errorf("reference is empty")
	}

	if youTubeIDRegex.MatchString(input) {
		return youTubeVideo(input), nil
	}
	if m := bareHandle.FindStringSubmatch(input); m != nil {
		return tikTokAccountRef(m[1]), nil
	}

	clean := stripQuery(input)
	for _, pattern := range youTubePatterns {
		if m := pattern.FindStringSubmatch(input); m != nil {
			return youTubeVideo(m[1]), nil
		}
	}
	if m := youTubeChannel.FindStringSubmatch(clean); m != nil {
		return Reference{Platform: PlatformYouTube, Kind: KindAccount, ID: m[1], URL: "https://www.youtube.com/@" + m[1]}, nil
	}
	if m := tikTokVideo.FindStringSubmatch(clean); m != nil {
		return Reference{
			Platform: PlatformTikTok,
			Kind:     KindVideo,
			ID:       m[2],
			URL:      fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", m[1], m[2]),
		}, nil
	}
	if m := tikTokAccount.FindStringSubmatch(clean); m != nil {
		return tikTokAccountRef(m[1]), nil
	}
	if m := instagramVideo.FindStringSubmatch(clean); m != nil {
		return Reference{Platform: PlatformInstagram, Kind: KindVideo, ID: m[1], URL: "https://www.instagram.com/reel/" + m[1] + "/"}, nil
	}
	if m := instagramHandle.FindStringSubmatch(clean); m != nil && !reservedInstagramPath(m[1]) {
		return Reference{Platform: PlatformInstagram, Kind: KindAccount, ID: m[1], URL: "https://www.instagram.com/" + m[1] + "/"}, nil
	}

	return Reference{}, fmt.Errorf("unsupported reference: %s", input)
}

func youTubeVideo(id string) Reference {
	return Reference{Platform: PlatformYouTube, Kind: KindVideo, ID: id, URL: "https://www.youtube.com/watch?v=" + id}
}

func tikTokAccountRef(handle string) Reference {
	return Reference{Platform: PlatformTikTok, Kind: KindAccount, ID: handle, URL: "https://www.tiktok.com/@" + handle}
}

// stripQuery drops the query string and fragment so trailing tracking
// parameters do not defeat the anchored patterns.
func stripQuery(input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return input
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func reservedInstagramPath(segment string) bool {
	switch segment {
	case "explore", "accounts", "about", "developer", "stories":
		return true
	}
	return false
}
