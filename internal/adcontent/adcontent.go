// Package adcontent encodes the binary payloads published to the content store
// and decodes the targeting keys and profiles read back from the node. Messages
// use the protobuf wire format.
package adcontent

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"adline/internal/domain"
)

// Content is the published body of an ad.
type Content struct {
	ID     string
	Title  string
	URL    string
	Cover  []byte
	Author string
}

// Key is the targeting key an ad is burnt under.
type Key struct {
	Language string
	Age      int
	Stake    decimal.Decimal
	OS       string
}

// ProfileAd is one ad listed in an author's profile.
type ProfileAd struct {
	ContentID     string
	Target        Key
	VotingAddress string
}

type Profile struct {
	Ads []ProfileAd
}

// VotingFact is the subject stored in a review voting contract.
type VotingFact struct {
	Title     string
	ContentID string
}

func FromAd(ad domain.Ad) Content {
	return Content{ID: ad.ID, Title: ad.Title, URL: ad.URL, Cover: ad.Cover, Author: ad.Author}
}

func KeyFromAd(ad domain.Ad) Key {
	return Key{Language: ad.Language, Age: ad.Age, Stake: ad.Stake, OS: ad.OS}
}

// Matches reports whether an identity is targeted by the key.
func (k Key) Matches(id domain.Identity) bool {
	return strings.EqualFold(k.Language, id.Language) &&
		id.Age >= k.Age &&
		id.Stake.GreaterThanOrEqual(k.Stake) &&
		strings.EqualFold(k.OS, id.OS)
}

func (c Content) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, c.ID)
	b = appendString(b, 2, c.Title)
	b = appendString(b, 3, c.URL)
	if len(c.Cover) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Cover)
	}
	b = appendString(b, 5, c.Author)
	return b
}

func UnmarshalContent(b []byte) (Content, error) {
	var c Content
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case 1:
			c.ID = string(v)
		case 2:
			c.Title = string(v)
		case 3:
			c.URL = string(v)
		case 4:
			c.Cover = append([]byte(nil), v...)
		case 5:
			c.Author = string(v)
		}
		return nil
	})
	return c, err
}

func (k Key) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, k.Language)
	if k.Age > 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.Age))
	}
	if !k.Stake.IsZero() {
		b = appendString(b, 3, k.Stake.String())
	}
	b = appendString(b, 4, k.OS)
	return b
}

func UnmarshalKey(b []byte) (Key, error) {
	var k Key
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch num {
		case 1:
			k.Language = string(v)
		case 2:
			if typ != protowire.VarintType {
				return fmt.Errorf("ad key: age has wire type %d", typ)
			}
			k.Age = int(n)
		case 3:
			d, err := decimal.NewFromString(string(v))
			if err != nil {
				return fmt.Errorf("ad key: stake: %w", err)
			}
			k.Stake = d
		case 4:
			k.OS = string(v)
		}
		return nil
	})
	return k, err
}

func (p Profile) Marshal() []byte {
	var b []byte
	for _, ad := range p.Ads {
		var item []byte
		item = appendString(item, 1, ad.ContentID)
		if target := ad.Target.Marshal(); len(target) > 0 {
			item = protowire.AppendTag(item, 2, protowire.BytesType)
			item = protowire.AppendBytes(item, target)
		}
		item = appendString(item, 3, ad.VotingAddress)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, item)
	}
	return b
}

func UnmarshalProfile(b []byte) (Profile, error) {
	var p Profile
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != 1 {
			return nil
		}
		var ad ProfileAd
		err := walk(v, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
			switch num {
			case 1:
				ad.ContentID = string(v)
			case 2:
				key, err := UnmarshalKey(v)
				if err != nil {
					return err
				}
				ad.Target = key
			case 3:
				ad.VotingAddress = string(v)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("profile ad: %w", err)
		}
		p.Ads = append(p.Ads, ad)
		return nil
	})
	return p, err
}

func (f VotingFact) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, f.Title)
	b = appendString(b, 2, f.ContentID)
	return b
}

func DecodeVotingFact(b []byte) (VotingFact, error) {
	var f VotingFact
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case 1:
			f.Title = string(v)
		case 2:
			f.ContentID = string(v)
		}
		return nil
	})
	return f, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// walk visits every field; length-delimited values arrive in v, varints in n.
// Other wire types are skipped.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return protowire.ParseError(tagLen)
		}
		b = b[tagLen:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := visit(num, typ, v, 0); err != nil {
				return err
			}
			b = b[m:]
		case protowire.VarintType:
			n, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := visit(num, typ, nil, n); err != nil {
				return err
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return nil
}
