/*
Package facade exposes a lifecycle.Controller as a small command language.

Scripts consist of commands separated by newlines or semicolons. Words are
separated by blanks; "..." groups words and substitutes $variables and
[command] results, {...} groups words literally.

	set db [hkv open -path /tmp/data -create_if_missing 1]
	$db put greeting hello
	puts [$db get greeting]
	$db close

Every handle returned by a command is bound as a new command of the same
name until it is closed:

	hkv open -path PATH ?-OPTION VALUE ...?
	hkv repair PATH | hkv destroy PATH | hkv version | hkv batch | hkv handles

	<db> get KEY ?-fillCache BOOLEAN? ?-snapshot HANDLE?
	<db> put KEY DATA ?-sync BOOLEAN?
	<db> delete KEY ?-sync BOOLEAN?
	<db> exists KEY | write BATCH ?-sync BOOLEAN? | batch | iterator ?-snapshot HANDLE?
	<db> snapshot | getApproximateSizes START LIMIT | getName | getProperty NAME | close

	<itr> seektofirst | seektolast | seek KEY | valid | next | prev | key | value | close
	<bat> put KEY DATA | delete KEY | count | clear | close
	<snap> close -db DB

Commands that only change state return 0, valid and exists return 1 or 0.
Booleans accept 1/0, true/false, yes/no and on/off. Errors are the
*handle.Error values of the controller.
*/
package facade
