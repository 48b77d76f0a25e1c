package provision

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varka/xmpp/jid"
)

// DiscoClient queries service discovery information from peers.
type DiscoClient interface {
	// QueryFeatures returns the feature vars advertised by target.
	QueryFeatures(ctx context.Context, target jid.JID) ([]string, error)
	// QueryItems returns the items advertised by target.
	QueryItems(ctx context.Context, target jid.JID) ([]jid.JID, error)
}

// DiscoverServerFeatures maps each feature advertised by target or one
// of its items to the entity providing it. Items are descended into one
// level only, and a feature already seen on the server itself is not
// overridden by an item's copy.
func DiscoverServerFeatures(ctx context.Context, log zerolog.Logger, d DiscoClient, target jid.JID) (map[string]jid.JID, error) {
	features, err := d.QueryFeatures(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "disco#info at %s", target)
	}
	out := make(map[string]jid.JID, len(features))
	for _, f := range features {
		out[f] = target
	}

	items, err := d.QueryItems(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "disco#items at %s", target)
	}
	for _, item := range items {
		sub, err := d.QueryFeatures(ctx, item)
		if err != nil {
			// A broken item does not spoil discovery of the rest.
			log.Warn().Err(err).Str("item", item.String()).
				Msg("item feature query failed")
			continue
		}
		for _, f := range sub {
			if _, ok := out[f]; !ok {
				out[f] = item
			}
		}
	}
	return out, nil
}
