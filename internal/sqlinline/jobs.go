package sqlinline

const QInsertJob = `--sql 63ea30f4-db08-485a-82f4-bd496a46a020
insert into jobs (id, owner_id, job_type, payload, locale, status, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::jsonb, $5::text, 'pending', now(), now())
returning created_at, updated_at;
`

const QSelectJob = `--sql 39f00e8f-2283-4e99-b91a-a0e6e9aca79f
select id, owner_id, job_type, payload, status, result, error_message, handle,
       locale, created_at, updated_at, completed_at
from jobs
where id = $1::uuid
limit 1;
`

const QSelectJobsByID = `--sql ab40bc67-7d7c-4e72-bcf8-413b48677f32
select id, owner_id, job_type, payload, status, result, error_message, handle,
       locale, created_at, updated_at, completed_at
from jobs
where id = any($1::uuid[])
order by created_at asc;
`

const QListJobsByOwner = `--sql befcf674-0439-4839-bbc7-d425ea09b188
select id, owner_id, job_type, payload, status, result, error_message, handle,
       locale, created_at, updated_at, completed_at
from jobs
where owner_id = $1::text
order by created_at desc
limit $2::int;
`

const QListPendingJobs = `--sql f3cb1b06-b2ba-4bd1-9457-c420a9eb8d02
select id, owner_id, job_type, payload, status, result, error_message, handle,
       locale, created_at, updated_at, completed_at
from jobs
where status = 'pending'
order by created_at asc
limit $1::int;
`

const QClaimPendingJobs = `--sql a9dc87a8-da46-45f5-ac97-e028db76e3f0
with next_jobs as (
    select id
    from jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit $1::int
),
claimed as (
    update jobs
    set status = 'running', updated_at = now()
    where id in (select id from next_jobs)
    returning id, owner_id, job_type, payload, status, result, error_message, handle,
              locale, created_at, updated_at, completed_at
)
select * from claimed order by created_at asc;
`

const QSetJobHandle = `--sql 9630e1b2-7320-4411-a7a4-19cd894a049b
update jobs
set handle = $2::text, updated_at = now()
where id = $1::uuid and status = 'running';
`

const QMarkJobDone = `--sql 04918caa-88e5-45d5-b866-b14b9c62e23f
update jobs
set status = 'done',
    result = $2::jsonb,
    error_message = '',
    handle = '',
    updated_at = now(),
    completed_at = coalesce(completed_at, now())
where id = $1::uuid and status = 'running';
`

const QMarkJobError = `--sql fed3bffc-36d5-417c-b706-e03d4b20d67b
update jobs
set status = 'error',
    result = null,
    error_message = $2::text,
    handle = '',
    updated_at = now(),
    completed_at = coalesce(completed_at, now())
where id = $1::uuid and status = 'running';
`

const QRetryJob = `--sql 4dfd59ea-e156-4f3d-82f0-9ab9a9c4e460
update jobs
set status = 'pending',
    result = null,
    error_message = '',
    handle = '',
    updated_at = now(),
    completed_at = null
where id = $1::uuid and status = 'error';
`
