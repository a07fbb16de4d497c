package normalize

import (
	"encoding/json"
	"strings"
)

// WallPost is the raw wall record as VK returns it. Only the fields the
// normalizer reads are decoded; reposts nest recursively in CopyHistory
type WallPost struct {
	ID          int64        `json:"id"`
	PostID      int64        `json:"post_id"`
	OwnerID     int64        `json:"owner_id"`
	Date        int64        `json:"date"`
	PostType    string       `json:"post_type"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	CopyHistory []WallPost   `json:"copy_history"`
}

// Key returns the post id, tolerating feeds that use post_id instead of id
func (p WallPost) Key() int64 {
	if p.ID != 0 {
		return p.ID
	}
	return p.PostID
}

// PhotoSize is one rendition of a photo
type PhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Photo carries every photo shape VK has shipped over the years: a sizes
// array, an orig_photo block, flat src_* keys and legacy photo_<N> keys.
// Flat string fields are captured into Extra during decoding.
type Photo struct {
	Sizes []PhotoSize
	Orig  *PhotoSize
	Extra map[string]string
}

func (p *Photo) UnmarshalJSON(b []byte) error {
	var aux struct {
		Sizes []PhotoSize `json:"sizes"`
		Orig  *PhotoSize  `json:"orig_photo"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Sizes = aux.Sizes
	p.Orig = aux.Orig

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		var s string
		if json.Unmarshal(val, &s) != nil {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[key] = s
	}
	return nil
}

// Video is referenced by owner and id only, VK serves no direct file URL
type Video struct {
	ID      *int64 `json:"id"`
	OwnerID *int64 `json:"owner_id"`
}

// LinkAttachment is an external link card with an optional cover photo
type LinkAttachment struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Photo *Photo `json:"photo"`
}

// Doc is an uploaded document with an optional photo preview
type Doc struct {
	URL     string `json:"url"`
	Preview struct {
		Photo *Photo `json:"photo"`
	} `json:"preview"`
}

// PollAttachment keeps the raw poll; Anonymous defaults to true when the
// field is absent
type PollAttachment struct {
	Question  string `json:"question"`
	Anonymous *bool  `json:"anonymous"`
	Answers   []struct {
		Text string `json:"text"`
	} `json:"answers"`
}

// GenericAttachment covers attachment types the normalizer has no special
// handling for; a url-bearing one still contributes a text line
type GenericAttachment struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Attachment decodes the VK tagged-union attachment: {"type": "photo",
// "photo": {...}}. The payload object lives under the key named by Type
type Attachment struct {
	Type    string
	Photo   *Photo
	Video   *Video
	Link    *LinkAttachment
	Doc     *Doc
	Poll    *PollAttachment
	Generic *GenericAttachment
}

func (a *Attachment) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &a.Type); err != nil {
			return err
		}
	}
	body, ok := raw[a.Type]
	switch a.Type {
	case "photo":
		if ok {
			a.Photo = &Photo{}
			return json.Unmarshal(body, a.Photo)
		}
	case "posted_photo":
		// old posts carry the photo fields at the top level
		a.Photo = &Photo{}
		if ok {
			return json.Unmarshal(body, a.Photo)
		}
		return json.Unmarshal(b, a.Photo)
	case "video":
		if ok {
			a.Video = &Video{}
			return json.Unmarshal(body, a.Video)
		}
	case "link":
		if ok {
			a.Link = &LinkAttachment{}
			return json.Unmarshal(body, a.Link)
		}
	case "doc":
		if ok {
			a.Doc = &Doc{}
			return json.Unmarshal(body, a.Doc)
		}
	case "poll":
		if ok {
			a.Poll = &PollAttachment{}
			return json.Unmarshal(body, a.Poll)
		}
	default:
		if ok {
			a.Generic = &GenericAttachment{}
			return json.Unmarshal(body, a.Generic)
		}
	}
	return nil
}

// NewsItem is a headline scraped from the site feed page
type NewsItem struct {
	URL      string
	Title    string
	Date     string
	IsDigest bool
}

// NewsDetail is the scraped article page for a NewsItem
type NewsDetail struct {
	CanonicalURL string
	Title        string
	Date         string
	Text         string
	Images       []string
	IsEvent      bool
	IsDigest     bool
}
