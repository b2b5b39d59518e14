package sqlinline

const QStatsSummary = `--sql b11d26fe-2ac5-481a-b17e-b4aa9b13a353
select
    (select count(*) from jobs) as jobs_total,
    (select count(*) from jobs where status = 'pending') as jobs_pending,
    (select count(*) from jobs where status = 'running') as jobs_running,
    (select count(*) from jobs where status = 'done') as jobs_done,
    (select count(*) from jobs where status = 'error') as jobs_error,
    (select count(*) from jobs where completed_at >= now() - interval '24 hours') as jobs_completed_24h,
    (select coalesce(sum(credits_used), 0) from credit_accounts) as credits_used_total;
`
