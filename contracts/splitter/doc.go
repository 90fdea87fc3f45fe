/*
Package splitter implements Splitter contract, a ledger splitting token
deposits between two recipients.

Splitter accepts a single NEP-17 token chosen at deployment. A sender
transfers tokens to the contract and attaches payment data: the amount to
split and two recipients. The fee (if the ledger was deployed with one) is
credited to the ledger owner and the rest is split evenly between recipients.
Credited amounts are accounted in the contract storage and stay on the
contract account until a recipient withdraws them with Withdraw method.

Any failed check FAULTs the invocation, so neither the ledger nor the token
balances change in that case.

# Contract notifications

Split notification. This notification is produced when a deposit is split
between recipients. Fee is 0 if the ledger charges no fee, charged amount is
the part of the deposit credited to the ledger.

	Split:
	  - name: sender
	    type: Hash160
	  - name: recipient1
	    type: Hash160
	  - name: recipient2
	    type: Hash160
	  - name: owner
	    type: Hash160
	  - name: share
	    type: Integer
	  - name: fee
	    type: Integer
	  - name: charged
	    type: Integer

Withdraw notification. This notification is produced when a ledger balance is
paid out to its holder.

	Withdraw:
	  - name: user
	    type: Hash160
	  - name: amount
	    type: Integer
*/
package splitter
