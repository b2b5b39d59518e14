package sqlinline

const QInsertUsageEvent = `--sql 0f304b5b-2325-42d9-96be-50e6a2e57085
insert into usage_events (id, user_id, job_id, event_type, success, created_at, properties)
values (gen_random_uuid(), $1::text, $2::uuid, $3::text, $4::boolean, now(), coalesce($5::jsonb, '{}'::jsonb));
`

const QInsertNotification = `--sql d7a5d868-acaf-4753-b314-997f9531a9ac
insert into notifications (id, user_id, job_id, kind, message, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, $3::text, $4::text, now());
`
