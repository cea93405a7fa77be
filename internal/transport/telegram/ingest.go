package telegram

import (
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/transport"
)

// Ingest classifies an inbound message into the closed content variant.
// The decision happens once here; everything downstream matches on the
// kind instead of probing message attributes.
func Ingest(m *tele.Message) transport.Content {
	c := transport.Content{
		Origin: transport.MessageRef{ChatID: m.Chat.ID, MessageID: m.ID},
	}

	switch {
	case m.Photo != nil:
		c.Kind = transport.KindPhoto
		c.FileID = m.Photo.FileID
		c.Text = m.Caption
	case m.Video != nil:
		c.Kind = transport.KindVideo
		c.FileID = m.Video.FileID
		c.Text = m.Caption
	case m.Document != nil:
		c.Kind = transport.KindDocument
		c.FileID = m.Document.FileID
		c.Text = m.Caption
	case m.Audio != nil:
		c.Kind = transport.KindAudio
		c.FileID = m.Audio.FileID
		c.Text = m.Caption
	case m.Voice != nil:
		c.Kind = transport.KindVoice
		c.FileID = m.Voice.FileID
		c.Text = m.Caption
	case m.Sticker != nil:
		c.Kind = transport.KindSticker
		c.FileID = m.Sticker.FileID
	case m.Animation != nil:
		c.Kind = transport.KindAnimation
		c.FileID = m.Animation.FileID
		c.Text = m.Caption
	case m.VideoNote != nil:
		c.Kind = transport.KindVideoNote
		c.FileID = m.VideoNote.FileID
	case m.Location != nil:
		c.Kind = transport.KindLocation
		c.Latitude = m.Location.Lat
		c.Longitude = m.Location.Lng
	case m.Contact != nil:
		c.Kind = transport.KindContact
		c.ContactPhone = m.Contact.PhoneNumber
		c.ContactFirstName = m.Contact.FirstName
		c.ContactLastName = m.Contact.LastName
	case m.Poll != nil:
		c.Kind = transport.KindPoll
		c.Poll = &transport.PollSpec{
			Question:  m.Poll.Question,
			Options:   pollOptions(m.Poll),
			Anonymous: m.Poll.Anonymous,
			Type:      string(m.Poll.Type),
		}
	case m.Text != "":
		c.Kind = transport.KindText
		c.Text = m.Text
	default:
		c.Kind = transport.KindOther
		c.Descriptor = describeOther(m)
		c.Text = m.Caption
	}
	return c
}

func pollOptions(p *tele.Poll) []string {
	opts := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		opts = append(opts, o.Text)
	}
	return opts
}

// describeOther names unrecognized content for the fallback copy.
func describeOther(m *tele.Message) string {
	switch {
	case m.Dice != nil:
		return "dice"
	case m.Game != nil:
		return "game"
	case m.Invoice != nil:
		return "invoice"
	case m.Venue != nil:
		return "venue"
	default:
		return "unsupported"
	}
}
