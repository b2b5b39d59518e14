package sqlinline

// QEnsureCreditAccount materializes the balance row on first read, applying
// the signup grant exactly once.
const QEnsureCreditAccount = `--sql 3e24b8b6-6e10-40c2-83cd-aadc4a44c256
insert into credit_accounts (user_id, current_balance, credits_used, created_at, updated_at)
values ($1::text, $2::int, 0, now(), now())
on conflict (user_id) do nothing;
`

const QSelectCreditAccount = `--sql 6b3bce1b-4b31-4878-b783-75704a727fc7
select user_id, current_balance, credits_used, last_free_claim_at, created_at, updated_at
from credit_accounts
where user_id = $1::text
limit 1;
`

// QClaimFreeCredits re-checks the cooldown inside the update itself so two
// concurrent claims cannot both win.
const QClaimFreeCredits = `--sql e77e9515-75e2-4f49-bb6c-ad2ab7fe12ca
update credit_accounts
set current_balance = current_balance + $2::int,
    last_free_claim_at = now(),
    updated_at = now()
where user_id = $1::text
  and (last_free_claim_at is null or last_free_claim_at <= now() - ($3::int * interval '1 second'))
returning current_balance;
`

// QDebitCredits refuses rather than partially deducting: the decrement is
// conditioned on the balance covering the full amount.
const QDebitCredits = `--sql 301447d3-537e-46ce-8932-c4ecc8fd1922
update credit_accounts
set current_balance = current_balance - $2::int,
    credits_used = credits_used + $2::int,
    updated_at = now()
where user_id = $1::text and current_balance >= $2::int
returning current_balance;
`

const QAddCredits = `--sql 448396bd-c359-461d-8de5-9a2511bf2f8b
update credit_accounts
set current_balance = current_balance + $2::int,
    updated_at = now()
where user_id = $1::text
returning current_balance;
`
