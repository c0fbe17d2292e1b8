package crdb

import "context"

// Schema is the full DDL for the service. CockroachDB supports partial
// unique indexes, which carry the two invariants the application cannot
// enforce on its own: one booking per slot and one pending order per
// consumer.
const Schema = `
CREATE TABLE IF NOT EXISTS slots (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	end_at TIMESTAMPTZ NOT NULL,
	price NUMERIC NOT NULL,
	reduction NUMERIC,
	slot_type TEXT NOT NULL DEFAULT '',
	CHECK (end_at > start_at)
);
CREATE INDEX IF NOT EXISTS slots_owner_start ON slots (owner_id, start_at);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	slot_id UUID NOT NULL REFERENCES slots (id),
	consumer_id UUID NOT NULL,
	order_id UUID,
	subject TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (slot_id)
);
CREATE INDEX IF NOT EXISTS bookings_order ON bookings (order_id);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	consumer_id UUID NOT NULL,
	number TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'PAID', 'CANCELLED')),
	tax_rate NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ,
	paid_at TIMESTAMPTZ,
	checkout_session_id TEXT,
	checkout_expires_at TIMESTAMPTZ,
	payment_intent_id TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_pending_per_consumer ON orders (consumer_id) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS tax_rates (
	id UUID PRIMARY KEY,
	rate NUMERIC NOT NULL,
	valid_from TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'NEW',
	attempts INT NOT NULL DEFAULT 0,
	dedupe_key TEXT NOT NULL DEFAULT ''
);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
